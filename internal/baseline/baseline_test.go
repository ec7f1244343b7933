package baseline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"stagegate/internal/stage"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    stage.State
		wantErr error
	}{
		{
			name: "flat object",
			body: `{"ideation":"completed","viability_assessment":"available","swot":"locked"}`,
			want: stage.State{
				stage.Ideation:            stage.StatusCompleted,
				stage.ViabilityAssessment: stage.StatusAvailable,
				stage.SWOT:                stage.StatusLocked,
			},
		},
		{
			name: "wrapped in status with camelCase keys",
			body: `{"status":{"viabilityAssessment":"completed","brandIdentity":"available"},"updatedAt":"2026-01-01"}`,
			want: stage.State{
				stage.ViabilityAssessment: stage.StatusCompleted,
				stage.BrandIdentity:       stage.StatusAvailable,
			},
		},
		{
			name: "wrapped in data",
			body: `{"data":{"bmc":"completed"}}`,
			want: stage.State{stage.BMC: stage.StatusCompleted},
		},
		{
			name: "boolean values",
			body: `{"swot":true,"bmc":false}`,
			want: stage.State{stage.SWOT: stage.StatusCompleted, stage.BMC: stage.StatusLocked},
		},
		{
			name: "unknown values fail closed and unknown stages are ignored",
			body: `{"swot":"in-review","bmc":3,"financials":"completed"}`,
			want: stage.State{stage.SWOT: stage.StatusLocked, stage.BMC: stage.StatusLocked},
		},
		{
			name: "string status field is not a wrapper",
			body: `{"status":"ok","swot":"available"}`,
			want: stage.State{stage.SWOT: stage.StatusAvailable},
		},
		{
			name:    "array body",
			body:    `["swot"]`,
			wantErr: ErrInvalidBody,
		},
		{
			name:    "malformed body",
			body:    `{"swot":`,
			wantErr: ErrInvalidBody,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.body))
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr))
				return
			}
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Decode() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNewClient(t *testing.T) {
	c, err := NewClient("https://api.example.com/", "")
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com"+DefaultStatusPath, c.Endpoint())

	c, err = NewClient("http://localhost:8000", "workflow/status")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000/workflow/status", c.Endpoint())

	_, err = NewClient("", "")
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = NewClient("ftp://example.com", "")
	assert.Error(t, err)
}

func TestClient_Baseline(t *testing.T) {
	var gotAccept, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccept = r.Header.Get("Accept")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":{"ideation":"completed","viabilityAssessment":"available"}}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "", WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	st, err := c.Baseline(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "application/json", gotAccept)
	assert.Equal(t, DefaultStatusPath, gotPath)
	assert.Equal(t, stage.StatusAvailable, st[stage.ViabilityAssessment])
}

func TestClient_Baseline_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"error":"upstream down"}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "")
	require.NoError(t, err)

	_, err = c.Baseline(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
	assert.Contains(t, err.Error(), "502")
}

func TestClient_Baseline_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c, err := NewClient(srv.URL, "", WithTimeout(50*time.Millisecond))
	require.NoError(t, err)

	_, err = c.Baseline(context.Background())
	assert.Error(t, err)
}

func TestClient_Baseline_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewClient(url, "")
	require.NoError(t, err)

	_, err = c.Baseline(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to fetch baseline")
}

func TestStatic_ReturnsCopy(t *testing.T) {
	s := Static{stage.SWOT: stage.StatusAvailable}

	st, err := s.Baseline(context.Background())
	require.NoError(t, err)
	st[stage.SWOT] = stage.StatusCompleted

	assert.Equal(t, stage.StatusAvailable, s[stage.SWOT])
}
