package contactout

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    *ContactData
		wantErr string
	}{
		{
			name:   "union_across_profiles",
			status: http.StatusOK,
			body: `{"profiles":{
				"https://linkedin.com/in/a": {"contact_info":{"emails":["jane@acme.com"],"work_emails":["jane@acme.com","j.doe@acme.com"],"phones":["+1 555 0100"]}},
				"https://linkedin.com/in/b": {"contact_info":{"personal_emails":["jane@gmail.com"],"phones":["+1 555 0100","+1 555 0199"]}}
			}}`,
			want: &ContactData{
				Emails: []string{"jane@acme.com", "j.doe@acme.com", "jane@gmail.com"},
				Phones: []string{"+1 555 0100", "+1 555 0199"},
			},
		},
		{
			name:   "profiles_empty_array",
			status: http.StatusOK,
			body:   `{"profiles":[]}`,
			want:   nil,
		},
		{
			name:   "profiles_without_contact_info",
			status: http.StatusOK,
			body:   `{"profiles":{"x":{},"y":{"contact_info":{"emails":[]}}}}`,
			want:   nil,
		},
		{
			name:    "unauthorized",
			status:  http.StatusUnauthorized,
			body:    `{"error":"bad token"}`,
			wantErr: "status 401",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/v1/people/search", r.URL.Path)
				assert.Equal(t, "secret", r.Header.Get("token"))
				assert.Equal(t, "application/json", r.Header.Get("Accept"))
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := NewClient("secret", WithBaseURL(srv.URL))
			got, err := client.Search(context.Background(), PersonQuery{Name: "Jane Doe", Role: "Fleet Manager", Company: "Acme"})

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				var lse *LookupServiceError
				require.True(t, errors.As(err, &lse))
				assert.Equal(t, `{"error":"bad token"}`, lse.Body)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSearch_RequestPayload(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"profiles":[]}`))
	}))
	defer srv.Close()

	client := NewClient("k", WithBaseURL(srv.URL+"/"), WithRateLimit(100))

	_, err := client.Search(context.Background(), PersonQuery{Name: "Jane Doe", Role: "Not Found"})
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", got["name"])
	assert.Equal(t, "both", got["match_experience"])
	assert.Equal(t, true, got["reveal_info"])
	assert.Equal(t, []any{"personal_email", "work_email", "phone"}, got["data_types"])
	assert.NotContains(t, got, "job_title")
	assert.NotContains(t, got, "company")

	_, err = client.Search(context.Background(), PersonQuery{Name: "Jane Doe", Role: "Buyer", Company: "Acme"})
	require.NoError(t, err)
	assert.Equal(t, []any{"Buyer"}, got["job_title"])
	assert.Equal(t, []any{"Acme"}, got["company"])
}

func TestSearch_RateLimitHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"profiles":[]}`))
	}))
	defer srv.Close()

	client := NewClient("k", WithBaseURL(srv.URL), WithRateLimit(0.001))
	_, err := client.Search(context.Background(), PersonQuery{Name: "A"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = client.Search(ctx, PersonQuery{Name: "B"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit wait")
}
