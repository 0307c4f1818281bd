package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/solatis/linewarden/internal/types"
)

func TestOrdersCommand_LatestPerSubscriber(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if q := r.URL.Query().Get("q"); !strings.Contains(q, "CreatedDate") {
			t.Errorf("q = %q, want window query", q)
		}
		fmt.Fprint(w, `{"totalSize":3,"done":true,"records":[
			{"Id":"oi-1","PR_MSISDN__c":"15550001","CreatedDate":"2026-03-09T08:00:00Z","Order":{"Id":"o-1"}},
			{"Id":"oi-2","PR_MSISDN__c":"15550001","CreatedDate":"2026-03-09T12:00:00Z","Order":{"Id":"o-2"}},
			{"Id":"oi-3","PR_MSISDN__c":"15550002","CreatedDate":"2026-03-09T09:00:00Z","Order":{"Id":"o-3"}}
		]}`)
	}))
	defer srv.Close()

	t.Setenv("LW_SOURCE_BASE_URL", srv.URL)
	t.Setenv("LW_SOURCE_TOKEN", "tok")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"orders", "--log-level", "error"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
		logLevel = ""
	})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v, want nil", err)
	}

	var got map[string]types.Order
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("output decode error = %v, output = %s", err, out.String())
	}
	if len(got) != 2 {
		t.Fatalf("orders = %v, want 2 subscribers", got)
	}
	if got["15550001"].ID != "o-2" {
		t.Errorf("15550001 order = %q, want latest o-2", got["15550001"].ID)
	}
	if got["15550002"].ID != "o-3" {
		t.Errorf("15550002 order = %q, want o-3", got["15550002"].ID)
	}
}
