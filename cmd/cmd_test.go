package cmd

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseReadings(t *testing.T) {
	got, err := parseReadings(map[string]string{"cpu_percent": "87.5", "queue": "3"})
	if err != nil {
		t.Fatalf("parseReadings: %v", err)
	}
	if got["cpu_percent"] != 87.5 || got["queue"] != 3 {
		t.Fatalf("readings = %v", got)
	}
	if _, err := parseReadings(map[string]string{"cpu": "high"}); err == nil {
		t.Fatal("non-numeric reading should fail")
	}
}

func TestFilterDetachArg(t *testing.T) {
	got := filterDetachArg([]string{"daemon", "--detach", "--addr", ":9000", "--detach=true"})
	want := []string{"daemon", "--addr", ":9000"}
	if len(got) != len(want) {
		t.Fatalf("args = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("args = %v, want %v", got, want)
		}
	}
}

func TestPIDFileClaimRelease(t *testing.T) {
	pf := pidFile(filepath.Join(t.TempDir(), "run", "toolmeterd.pid"))
	if err := pf.claimable(); err != nil {
		t.Fatalf("missing pid file should be claimable: %v", err)
	}

	if err := pf.claim(daemonState{Addr: "127.0.0.1:9999"}); err != nil {
		t.Fatalf("claim: %v", err)
	}
	pid, err := pf.pid()
	if err != nil || pid != os.Getpid() {
		t.Fatalf("pid() = %d, %v; want %d", pid, err, os.Getpid())
	}
	st, err := pf.state()
	if err != nil || st.Addr != "127.0.0.1:9999" || st.PID != pid {
		t.Fatalf("state() = %+v, %v", st, err)
	}

	// This process is alive, so a second claim must fail.
	if err := pf.claim(daemonState{}); err == nil {
		t.Fatal("claim over a live pid should fail")
	}

	pf.release()
	if _, err := pf.pid(); err == nil {
		t.Fatal("pid file should be gone after release")
	}
}

func TestPIDFileInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.pid")
	if err := os.WriteFile(path, []byte("nope\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := pidFile(path).pid(); err == nil {
		t.Fatal("garbage pid should be rejected")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("git_log", 10); got != "git_log" {
		t.Fatalf("truncate short = %q", got)
	}
	if got := truncate("filesystem_search", 8); got != "filesys…" {
		t.Fatalf("truncate long = %q, want filesys…", got)
	}
}
