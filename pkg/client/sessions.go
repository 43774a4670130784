package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/paulmach/orb/geojson"

	"github.com/turtacn/PlotAtlas/pkg/errors"
	"github.com/turtacn/PlotAtlas/pkg/types/common"
)

// SessionsClient drives server-side map sessions.
type SessionsClient struct {
	client *Client
}

func sessionPath(id string, parts ...string) string {
	p := mapPrefix + "/sessions/" + url.PathEscape(id)
	for _, s := range parts {
		p += "/" + s
	}
	return p
}

func (s *SessionsClient) call(ctx context.Context, method, path string, body interface{}) (*common.Session, error) {
	var out common.Session
	if err := s.client.do(ctx, method, path, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Create starts a session.  Without a server access token the session is a
// placeholder and every interaction fails with a 503.
func (s *SessionsClient) Create(ctx context.Context) (*common.Session, error) {
	return s.call(ctx, http.MethodPost, mapPrefix+"/sessions", nil)
}

func (s *SessionsClient) List(ctx context.Context) ([]string, error) {
	var out common.SessionList
	if err := s.client.do(ctx, http.MethodGet, mapPrefix+"/sessions", nil, &out); err != nil {
		return nil, err
	}
	return out.Sessions, nil
}

func (s *SessionsClient) Get(ctx context.Context, id string) (*common.Session, error) {
	if id == "" {
		return nil, errors.InvalidParam("session id is required")
	}
	return s.call(ctx, http.MethodGet, sessionPath(id), nil)
}

// SelectCity focuses the session on city.  Selecting while another city is
// focused is a 409.
func (s *SessionsClient) SelectCity(ctx context.Context, id, city string) (*common.Session, error) {
	return s.call(ctx, http.MethodPost, sessionPath(id, "select"), common.SelectCityRequest{City: city})
}

func (s *SessionsClient) Back(ctx context.Context, id string) (*common.Session, error) {
	return s.call(ctx, http.MethodPost, sessionPath(id, "back"), nil)
}

// VisiblePlots returns the plot features currently shown by the session.
func (s *SessionsClient) VisiblePlots(ctx context.Context, id string) (*geojson.FeatureCollection, error) {
	return s.client.collection(ctx, sessionPath(id, "plots"))
}

// OpenPopup opens the popup of the index-th visible plot.
func (s *SessionsClient) OpenPopup(ctx context.Context, id string, index int) (*common.Session, error) {
	return s.call(ctx, http.MethodPost, sessionPath(id, "popup"), common.OpenPopupRequest{FeatureIndex: &index})
}

func (s *SessionsClient) ClosePopup(ctx context.Context, id string) (*common.Session, error) {
	return s.call(ctx, http.MethodDelete, sessionPath(id, "popup"), nil)
}

// Resize reports a viewport change.  The server applies it after its
// debounce delay.
func (s *SessionsClient) Resize(ctx context.Context, id string) error {
	return s.client.do(ctx, http.MethodPost, sessionPath(id, "resize"), nil, nil)
}

func (s *SessionsClient) Delete(ctx context.Context, id string) error {
	return s.client.do(ctx, http.MethodDelete, sessionPath(id), nil, nil)
}

//Personal.AI order the ending
