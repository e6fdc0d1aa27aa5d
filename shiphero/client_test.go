package shiphero

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/replenish_backend/config"
)

func testClient(srv *httptest.Server, creds *CredentialStore) *Client {
	c := &Client{
		endpoint:        srv.URL + "/graphql",
		refreshEndpoint: srv.URL + "/auth/refresh",
		creds:           creds,
		http:            srv.Client(),
		logger:          config.GetLogger(),
		sleep:           func(time.Duration) {},
		now:             time.Now,
	}
	creds.refresh = c.exchangeRefreshToken
	return c
}

func validCreds() *CredentialStore {
	return NewCredentialStore("access-token", "refresh-token", time.Now().Add(time.Hour))
}

func TestExecuteResubmitsAfterThrottle(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests == 1 {
			fmt.Fprint(w, `{"errors":[{"message":"rate limited","code":30,"time_remaining":"2 seconds"}]}`)
			return
		}
		fmt.Fprint(w, `{"data":{"ok":true}}`)
	}))
	defer srv.Close()

	var slept []time.Duration
	c := testClient(srv, validCreds())
	c.sleep = func(d time.Duration) { slept = append(slept, d) }

	resp, err := c.Execute(context.Background(), "{ ok }", nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if resp.Data == nil {
		t.Fatal("expected data after resubmit")
	}
	if requests != 2 {
		t.Fatalf("expected 2 requests, got %d", requests)
	}
	if len(slept) != 1 || slept[0] != 2*time.Second {
		t.Fatalf("expected one 2s sleep, got %v", slept)
	}
}

func TestExecuteBoundedRetryGivesUp(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		fmt.Fprint(w, `{"errors":[{"message":"rate limited","code":30,"time_remaining":"1 seconds"}]}`)
	}))
	defer srv.Close()

	c := testClient(srv, validCreds())
	c.SetRetryPolicy(RetryPolicy{MaxAttempts: 3})

	if _, err := c.Execute(context.Background(), "{ ok }", nil); err == nil {
		t.Fatal("expected error once the attempt budget is spent")
	}
	if requests != 3 {
		t.Fatalf("expected 3 requests, got %d", requests)
	}
}

func TestExecuteRefreshesExpiredToken(t *testing.T) {
	var seenAuth string
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["refresh_token"] != "refresh-token" {
			t.Errorf("unexpected refresh token %q", body["refresh_token"])
		}
		fmt.Fprint(w, `{"access_token":"fresh-token","expires_in":3600}`)
	})
	mux.HandleFunc("/graphql", func(w http.ResponseWriter, r *http.Request) {
		seenAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, `{"data":{}}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	creds := NewCredentialStore("stale-token", "refresh-token", time.Now().Add(-time.Minute))
	c := testClient(srv, creds)

	if _, err := c.Execute(context.Background(), "{ ok }", nil); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if seenAuth != "Bearer fresh-token" {
		t.Fatalf("expected refreshed bearer token, got %q", seenAuth)
	}
}

func TestCredentialStorePersistHook(t *testing.T) {
	creds := NewCredentialStore("", "refresh-token", time.Time{})
	creds.refresh = func(ctx context.Context, refreshToken string) (string, time.Duration, error) {
		return "new-token", time.Hour, nil
	}

	persisted := ""
	creds.OnRefresh(func(token string, expiresAt time.Time) error {
		persisted = token
		return nil
	})

	token, err := creds.Current(context.Background())
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if token != "new-token" || persisted != "new-token" {
		t.Fatalf("token=%q persisted=%q", token, persisted)
	}
}

func paginatedResponse(dataKey string, nodes []string, hasNext bool, cursor string) string {
	edges := ""
	for i, n := range nodes {
		if i > 0 {
			edges += ","
		}
		edges += fmt.Sprintf(`{"node":%s}`, n)
	}
	return fmt.Sprintf(`{"data":{"%s":{"data":{"edges":[%s],"pageInfo":{"hasNextPage":%t,"endCursor":"%s"}}}}}`,
		dataKey, edges, hasNext, cursor)
}

func TestFetchPaginatedStopsWhenNoNextPage(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		fmt.Fprint(w, paginatedResponse("products", []string{`{"sku":"A"}`}, false, ""))
	}))
	defer srv.Close()

	c := testClient(srv, validCreds())
	nodes, err := c.FetchPaginated(context.Background(), "query", nil, "products")
	if err != nil {
		t.Fatalf("FetchPaginated: %v", err)
	}
	if requests != 1 {
		t.Fatalf("expected exactly 1 request, got %d", requests)
	}
	if len(nodes) != 1 {
		t.Fatalf("expected 1 node, got %d", len(nodes))
	}
}

func TestFetchPaginatedWalksCursors(t *testing.T) {
	var cursors []interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Variables map[string]interface{} `json:"variables"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		cursors = append(cursors, body.Variables["after"])

		if len(cursors) == 1 {
			fmt.Fprint(w, paginatedResponse("products", []string{`{"sku":"A"}`, `{"sku":"B"}`}, true, "cursor-1"))
			return
		}
		fmt.Fprint(w, paginatedResponse("products", []string{`{"sku":"C"}`}, false, ""))
	}))
	defer srv.Close()

	c := testClient(srv, validCreds())
	nodes, err := c.FetchPaginated(context.Background(), "query", nil, "products")
	if err != nil {
		t.Fatalf("FetchPaginated: %v", err)
	}
	if len(nodes) != 3 {
		t.Fatalf("expected 3 nodes, got %d", len(nodes))
	}
	if len(cursors) != 2 || cursors[0] != nil || cursors[1] != "cursor-1" {
		t.Fatalf("unexpected cursor sequence %v", cursors)
	}
}

func TestFetchPaginatedReturnsPartialOnMissingKeys(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests == 1 {
			fmt.Fprint(w, paginatedResponse("products", []string{`{"sku":"A"}`}, true, "cursor-1"))
			return
		}
		fmt.Fprint(w, `{"data":{"unexpected":{}}}`)
	}))
	defer srv.Close()

	c := testClient(srv, validCreds())
	nodes, err := c.FetchPaginated(context.Background(), "query", nil, "products")
	if err != nil {
		t.Fatalf("FetchPaginated: %v", err)
	}
	if len(nodes) != 1 {
		t.Fatalf("expected the partial first page, got %d nodes", len(nodes))
	}
}

func TestThrottleWaitParsing(t *testing.T) {
	cases := []struct {
		name      string
		errs      []graphQLError
		want      time.Duration
		throttled bool
	}{
		{"no errors", nil, 0, false},
		{"other error", []graphQLError{{Code: 5, Message: "boom"}}, 0, false},
		{"throttled", []graphQLError{{Code: 30, TimeRemaining: "27 seconds"}}, 27 * time.Second, true},
		{"malformed remaining", []graphQLError{{Code: 30, TimeRemaining: "soon"}}, time.Second, true},
		{"empty remaining", []graphQLError{{Code: 30}}, time.Second, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			wait, throttled := throttleWait(tc.errs)
			if throttled != tc.throttled || wait != tc.want {
				t.Fatalf("throttleWait = (%v, %v), want (%v, %v)", wait, throttled, tc.want, tc.throttled)
			}
		})
	}
}
