package geo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quickbite/internal/apperr"
)

func fakeKakao(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "KakaoAK test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v2/local/search/address.json":
			if r.URL.Query().Get("query") == "nowhere" {
				_, _ = w.Write([]byte(`{"documents":[]}`))
				return
			}
			_, _ = w.Write([]byte(`{"documents":[{"address_name":"서울 마포구 성산동 515","x":"126.9220","y":"37.5563",
				"road_address":{"address_name":"서울 마포구 월드컵북로 12"}}]}`))
		case "/v2/local/geo/coord2address.json":
			assert.Equal(t, "126.922", r.URL.Query().Get("x"))
			assert.Equal(t, "37.5563", r.URL.Query().Get("y"))
			_, _ = w.Write([]byte(`{"documents":[{"address":{"address_name":"서울 마포구 성산동 515"},"road_address":null}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGeocode(t *testing.T) {
	c := NewClient(fakeKakao(t).URL+"/", "test-key")
	places, err := c.Geocode(context.Background(), "월드컵북로 12")
	require.NoError(t, err)
	require.Len(t, places, 1)
	assert.Equal(t, "서울 마포구 월드컵북로 12", places[0].RoadAddress)
	assert.InDelta(t, 37.5563, places[0].Lat, 1e-9)
	assert.InDelta(t, 126.9220, places[0].Lng, 1e-9)
}

func TestGeocodeNoMatchIsNotFound(t *testing.T) {
	c := NewClient(fakeKakao(t).URL, "test-key")
	_, err := c.Geocode(context.Background(), "nowhere")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestReverse(t *testing.T) {
	c := NewClient(fakeKakao(t).URL, "test-key")
	p, err := c.Reverse(context.Background(), 37.5563, 126.922)
	require.NoError(t, err)
	assert.Equal(t, "서울 마포구 성산동 515", p.Address)
	assert.Empty(t, p.RoadAddress)
}

func TestUpstreamErrorStatus(t *testing.T) {
	c := NewClient(fakeKakao(t).URL, "wrong")
	_, err := c.Geocode(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, apperr.Internal, apperr.KindOf(err))
}

func TestDistance(t *testing.T) {
	assert.Zero(t, Distance(37.5, 127, 37.5, 127))
	// Seoul City Hall to Busan City Hall is about 325 km.
	assert.InDelta(t, 325, Distance(37.5663, 126.9779, 35.1798, 129.0750), 5)
	assert.InDelta(t, Distance(1, 2, 3, 4), Distance(3, 4, 1, 2), 1e-9)
}
