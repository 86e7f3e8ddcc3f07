package httpserver

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	screeningservice "baton/contexts/media-safety/screening-service"
	screeninghttp "baton/contexts/media-safety/screening-service/transport/http"
	relayservice "baton/contexts/relay-core/relay-service"
	"baton/contexts/relay-core/relay-service/domain/entities"
	"baton/contexts/relay-core/relay-service/domain/services"
	relayhttp "baton/contexts/relay-core/relay-service/transport/http"
)

type routeFixture struct {
	relay     relayservice.Module
	screening screeningservice.Module
	handler   http.Handler
	now       time.Time
}

func newRouteFixture(t *testing.T) routeFixture {
	t.Helper()
	relay := relayservice.NewInMemoryModule(nil)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	relay.Fakes.Clock.Set(now)
	screening := screeningservice.NewInMemoryModule(nil)
	server := New(relay, screening, nil, ":0")
	return routeFixture{
		relay:     relay,
		screening: screening,
		handler:   server.Handler(),
		now:       now,
	}
}

func newRouteActor(t *testing.T) (*ecdsa.PrivateKey, string) {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key, crypto.PubkeyToAddress(key.PublicKey).Hex()
}

func signIntent(t *testing.T, key *ecdsa.PrivateKey, actor, operation, payload string, timestamp int64, nonce string) string {
	t.Helper()
	intent := entities.Intent{
		Actor:       actor,
		Operation:   operation,
		PayloadHash: services.PayloadHash(payload),
		Timestamp:   timestamp,
		Nonce:       nonce,
	}
	sig, err := crypto.Sign(accounts.TextHash([]byte(services.IntentMessage(intent))), key)
	if err != nil {
		t.Fatalf("sign intent: %v", err)
	}
	return hexutil.Encode(sig)
}

func doJSON(t *testing.T, handler http.Handler, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Reader
	if payload == nil {
		body = bytes.NewReader(nil)
	} else {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response body: %v", err)
	}
}

func TestHealthzRoute(t *testing.T) {
	fx := newRouteFixture(t)

	rec := doJSON(t, fx.handler, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]string
	decodeJSON(t, rec, &body)
	if body["status"] != "ok" {
		t.Fatalf("expected status ok, got %q", body["status"])
	}
}

func TestRegisterNameRouteRoundTrip(t *testing.T) {
	fx := newRouteFixture(t)
	key, actor := newRouteActor(t)
	timestamp := fx.now.UnixMilli()

	rec := doJSON(t, fx.handler, http.MethodPost, "/v1/relay/names", relayhttp.RegisterNameRequest{
		UserAddress: actor,
		Name:        "Alice",
		Timestamp:   timestamp,
		Nonce:       "0",
		Signature:   signIntent(t, key, actor, entities.OpRegisterName, "alice", timestamp, "0"),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp relayhttp.RegisterNameResponse
	decodeJSON(t, rec, &resp)
	if !resp.Success {
		t.Fatalf("expected success, got error %q", resp.Error)
	}
	if resp.Name != "alice" {
		t.Fatalf("expected normalized name alice, got %q", resp.Name)
	}
	if resp.JobID == "" || resp.TxHash == "" {
		t.Fatalf("expected job id and tx hash, got %+v", resp)
	}

	statusRec := doJSON(t, fx.handler, http.MethodGet, "/v1/relay/jobs/"+resp.JobID, nil)
	if statusRec.Code != http.StatusOK {
		t.Fatalf("expected 200 from job status, got %d", statusRec.Code)
	}
	var status relayhttp.JobStatusResponse
	decodeJSON(t, statusRec, &status)
	if status.Status != string(entities.JobSucceeded) {
		t.Fatalf("expected succeeded job, got %q", status.Status)
	}
	if status.Operation != entities.OpRegisterName {
		t.Fatalf("expected %s, got %q", entities.OpRegisterName, status.Operation)
	}
	if status.Actor != actor {
		t.Fatalf("expected actor %s, got %q", actor, status.Actor)
	}
}

func TestRegisterNameRouteMapsForeignSignatureTo401(t *testing.T) {
	fx := newRouteFixture(t)
	_, actor := newRouteActor(t)
	strangerKey, _ := newRouteActor(t)
	timestamp := fx.now.UnixMilli()

	rec := doJSON(t, fx.handler, http.MethodPost, "/v1/relay/names", relayhttp.RegisterNameRequest{
		UserAddress: actor,
		Name:        "alice",
		Timestamp:   timestamp,
		Nonce:       "0",
		Signature:   signIntent(t, strangerKey, actor, entities.OpRegisterName, "alice", timestamp, "0"),
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", rec.Code, rec.Body.String())
	}
	var body relayhttp.ErrorResponse
	decodeJSON(t, rec, &body)
	if body.Success || body.Error == "" {
		t.Fatalf("expected error envelope, got %+v", body)
	}
}

func TestRegisterNameRouteMapsStaleIntentTo401(t *testing.T) {
	fx := newRouteFixture(t)
	key, actor := newRouteActor(t)
	stale := fx.now.Add(-10 * time.Minute).UnixMilli()

	rec := doJSON(t, fx.handler, http.MethodPost, "/v1/relay/names", relayhttp.RegisterNameRequest{
		UserAddress: actor,
		Name:        "alice",
		Timestamp:   stale,
		Nonce:       "0",
		Signature:   signIntent(t, key, actor, entities.OpRegisterName, "alice", stale, "0"),
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRegisterNameRouteMapsTakenNameTo409(t *testing.T) {
	fx := newRouteFixture(t)
	key, actor := newRouteActor(t)
	fx.relay.Fakes.CatalogLedger.TakeName("alice", "0x00000000000000000000000000000000000000bb")
	timestamp := fx.now.UnixMilli()

	rec := doJSON(t, fx.handler, http.MethodPost, "/v1/relay/names", relayhttp.RegisterNameRequest{
		UserAddress: actor,
		Name:        "alice",
		Timestamp:   timestamp,
		Nonce:       "0",
		Signature:   signIntent(t, key, actor, entities.OpRegisterName, "alice", timestamp, "0"),
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRegisterNameRouteRejectsInvalidJSON(t *testing.T) {
	fx := newRouteFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/relay/names", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	fx.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var body relayhttp.ErrorResponse
	decodeJSON(t, rec, &body)
	if body.Success {
		t.Fatalf("expected failure envelope, got %+v", body)
	}
}

func TestRegisterNameRouteRejectsNonHexSignature(t *testing.T) {
	fx := newRouteFixture(t)
	_, actor := newRouteActor(t)

	rec := doJSON(t, fx.handler, http.MethodPost, "/v1/relay/names", relayhttp.RegisterNameRequest{
		UserAddress: actor,
		Name:        "alice",
		Timestamp:   fx.now.UnixMilli(),
		Nonce:       "0",
		Signature:   "0xzz",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestJobStatusRouteUnknownJobIs404(t *testing.T) {
	fx := newRouteFixture(t)

	rec := doJSON(t, fx.handler, http.MethodGet, "/v1/relay/jobs/job-999999", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestScreeningCheckRouteReportsUnsafeInBody(t *testing.T) {
	fx := newRouteFixture(t)
	fx.screening.Fake.RejectText("spam spam spam", "solicitation")

	rec := doJSON(t, fx.handler, http.MethodPost, "/v1/screening/checks", screeninghttp.CheckRequest{
		Text: "spam spam spam",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp screeninghttp.CheckResponse
	decodeJSON(t, rec, &resp)
	if resp.Safe {
		t.Fatalf("expected unsafe verdict, got %+v", resp)
	}
	if resp.Reason != "solicitation" {
		t.Fatalf("expected rejection reason, got %q", resp.Reason)
	}
}

func TestScreeningCheckRouteAcceptsSafeText(t *testing.T) {
	fx := newRouteFixture(t)

	rec := doJSON(t, fx.handler, http.MethodPost, "/v1/screening/checks", screeninghttp.CheckRequest{
		Text: "new track out friday",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp screeninghttp.CheckResponse
	decodeJSON(t, rec, &resp)
	if !resp.Safe {
		t.Fatalf("expected safe verdict, got %+v", resp)
	}
}

func TestScreeningCheckRouteMapsBadMediaTo400(t *testing.T) {
	fx := newRouteFixture(t)

	rec := doJSON(t, fx.handler, http.MethodPost, "/v1/screening/checks", screeninghttp.CheckRequest{
		MediaBase64: "%%not-base64%%",
		ContentType: "image/png",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	var body screeninghttp.ErrorResponse
	decodeJSON(t, rec, &body)
	if body.Code != "invalid_media" {
		t.Fatalf("expected invalid_media code, got %q", body.Code)
	}
}

func TestScreeningCheckRouteMapsEmptyRequestTo400(t *testing.T) {
	fx := newRouteFixture(t)

	rec := doJSON(t, fx.handler, http.MethodPost, "/v1/screening/checks", screeninghttp.CheckRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	var body screeninghttp.ErrorResponse
	decodeJSON(t, rec, &body)
	if body.Code != "empty_request" {
		t.Fatalf("expected empty_request code, got %q", body.Code)
	}
}
