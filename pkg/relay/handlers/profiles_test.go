package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/classbot-dev/classbot/pkg/relay/config"
	"github.com/classbot-dev/classbot/pkg/relay/metrics"
	"github.com/classbot-dev/classbot/pkg/speech"
)

type fakeProfileStore struct {
	profileID  string
	createErr  error
	enrollment *speech.EnrollmentResult
	enrollErr  error

	gotLocale    string
	gotProfileID string
	gotAudio     []byte
	called       bool
}

func (f *fakeProfileStore) CreateProfile(ctx context.Context, locale string) (string, error) {
	f.called = true
	f.gotLocale = locale
	return f.profileID, f.createErr
}

func (f *fakeProfileStore) CreateEnrollment(ctx context.Context, profileID string, audio io.Reader) (*speech.EnrollmentResult, error) {
	f.called = true
	f.gotProfileID = profileID
	f.gotAudio, _ = io.ReadAll(audio)
	return f.enrollment, f.enrollErr
}

func profilesTestConfig() config.Config {
	return config.Config{
		SpeechKey:       "key",
		SpeechRegion:    "japaneast",
		Locale:          "ja-JP",
		MaxBodyBytes:    1 << 20,
		UpstreamTimeout: 5 * time.Second,
	}
}

func TestProfilesHandler_CreateProfile(t *testing.T) {
	t.Parallel()

	store := &fakeProfileStore{profileID: "prof-123"}
	h := ProfilesHandler{Config: profilesTestConfig(), Profiles: store}

	req := httptest.NewRequest(http.MethodPost, "/api/speaker-profiles", strings.NewReader(`{"name":"Taro"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var resp struct {
		ProfileID string `json:"profileId"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ProfileID != "prof-123" {
		t.Fatalf("profileId=%q", resp.ProfileID)
	}
	if store.gotLocale != "ja-JP" {
		t.Fatalf("locale=%q, want server-configured locale", store.gotLocale)
	}
}

func TestProfilesHandler_CreateProfileRequiresName(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"empty object", `{}`},
		{"blank name", `{"name":"   "}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := &fakeProfileStore{profileID: "prof-123"}
			h := ProfilesHandler{Config: profilesTestConfig(), Profiles: store}

			req := httptest.NewRequest(http.MethodPost, "/api/speaker-profiles", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
			}
			env := decodeErrorEnvelope(t, rec)
			if env.Error.Param != "name" {
				t.Fatalf("param=%q, want name", env.Error.Param)
			}
			if store.called {
				t.Fatalf("vendor should not be called when validation fails")
			}
		})
	}
}

func TestProfilesHandler_CreateProfileVendorFailureIs500(t *testing.T) {
	t.Parallel()

	store := &fakeProfileStore{createErr: &speech.Error{Status: http.StatusConflict, Message: "profile limit reached"}}
	h := ProfilesHandler{Config: profilesTestConfig(), Profiles: store}

	req := httptest.NewRequest(http.MethodPost, "/api/speaker-profiles", strings.NewReader(`{"name":"Taro"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	// Vendor status is not passed through here; profile creation failures
	// are reported as a server failure with the vendor's message.
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	env := decodeErrorEnvelope(t, rec)
	if env.Error.Message != "failed to create profile: profile limit reached" {
		t.Fatalf("message=%q", env.Error.Message)
	}
}

func TestProfilesHandler_TransportFailureCountsStatusZero(t *testing.T) {
	t.Parallel()

	m := metrics.New("profilesvendor")
	h := ProfilesHandler{
		Config:   profilesTestConfig(),
		Profiles: &fakeProfileStore{createErr: io.ErrUnexpectedEOF},
		Metrics:  m,
	}

	req := httptest.NewRequest(http.MethodPost, "/api/speaker-profiles", strings.NewReader(`{"name":"Taro"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	// Failures without a vendor response are counted under status 0.
	out := scrapeMetrics(t, m)
	if !strings.Contains(out, `profilesvendor_upstream_errors_total{status="0",vendor="speech"} 1`) {
		t.Fatalf("transport failure not counted:\n%s", out)
	}
}

func TestProfilesHandler_EnrollmentPassesVendorResponseThrough(t *testing.T) {
	t.Parallel()

	store := &fakeProfileStore{enrollment: &speech.EnrollmentResult{
		Status: http.StatusAccepted,
		Body:   []byte(`{"remainingEnrollmentsSpeechLength":12.5}`),
	}}
	h := ProfilesHandler{Config: profilesTestConfig(), Profiles: store}

	req := httptest.NewRequest(http.MethodPut, "/api/speaker-profiles", strings.NewReader("RIFFaudio-bytes"))
	req.Header.Set("X-Profile-Id", "prof-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if got := rec.Body.String(); got != `{"remainingEnrollmentsSpeechLength":12.5}` {
		t.Fatalf("body=%s, want vendor body verbatim", got)
	}
	if store.gotProfileID != "prof-123" {
		t.Fatalf("profileID=%q", store.gotProfileID)
	}
	if string(store.gotAudio) != "RIFFaudio-bytes" {
		t.Fatalf("audio=%q, want raw body streamed to vendor", store.gotAudio)
	}
}

func TestProfilesHandler_EnrollmentRequiresProfileHeader(t *testing.T) {
	t.Parallel()

	store := &fakeProfileStore{}
	h := ProfilesHandler{Config: profilesTestConfig(), Profiles: store}

	req := httptest.NewRequest(http.MethodPut, "/api/speaker-profiles", strings.NewReader("audio"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	env := decodeErrorEnvelope(t, rec)
	if env.Error.Param != "X-Profile-Id" {
		t.Fatalf("param=%q, want X-Profile-Id", env.Error.Param)
	}
	if store.called {
		t.Fatalf("vendor should not be called without a profile id")
	}
}

func TestProfilesHandler_EnrollmentVendorFailureIs500(t *testing.T) {
	t.Parallel()

	store := &fakeProfileStore{enrollErr: &speech.Error{Status: http.StatusBadRequest, Message: "audio too short"}}
	h := ProfilesHandler{Config: profilesTestConfig(), Profiles: store}

	req := httptest.NewRequest(http.MethodPut, "/api/speaker-profiles", strings.NewReader("audio"))
	req.Header.Set("X-Profile-Id", "prof-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	env := decodeErrorEnvelope(t, rec)
	if env.Error.Message != "failed to enroll voice: audio too short" {
		t.Fatalf("message=%q", env.Error.Message)
	}
}

func TestProfilesHandler_NotConfigured(t *testing.T) {
	t.Parallel()

	store := &fakeProfileStore{}
	h := ProfilesHandler{Config: config.Config{Locale: "ja-JP", MaxBodyBytes: 1 << 20, UpstreamTimeout: time.Second}, Profiles: store}

	req := httptest.NewRequest(http.MethodPost, "/api/speaker-profiles", strings.NewReader(`{"name":"Taro"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	env := decodeErrorEnvelope(t, rec)
	if env.Error.Type != "configuration_error" {
		t.Fatalf("type=%s", env.Error.Type)
	}
	if store.called {
		t.Fatalf("vendor should not be called when unconfigured")
	}
}

func TestProfilesHandler_MethodNotAllowed(t *testing.T) {
	t.Parallel()

	h := ProfilesHandler{Config: profilesTestConfig(), Profiles: &fakeProfileStore{}}
	req := httptest.NewRequest(http.MethodDelete, "/api/speaker-profiles", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Allow"); got != "POST, PUT" {
		t.Fatalf("Allow=%q, want \"POST, PUT\"", got)
	}
}
