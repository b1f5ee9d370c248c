package common

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/signloop/signloop/pkg/looplib"
)

func TestStatusResponseJSON(t *testing.T) {
	s := StatusResponse{
		Version:      "1.2.0",
		DeviceId:     "lobby-01",
		Endpoint:     "https://cms.example.com/api/content",
		Phase:        looplib.PhasePlaying,
		PlaylistName: "lobby loop",
		AssetCount:   3,
		State:        looplib.RotShowing,
		NowShowing: &ProgramAsset{
			Name:     "poster",
			Kind:     looplib.KindImage,
			Source:   "https://cdn.example.com/poster.jpg",
			Path:     "/var/lib/signloop/cache/0a1b.jpg",
			Duration: 30,
			Order:    1,
		},
	}
	b, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var out StatusResponse
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out.Phase != looplib.PhasePlaying || out.State != looplib.RotShowing {
		t.Fatalf("unexpected round trip: %+v", out)
	}
	if out.NowShowing == nil || out.NowShowing.Name != "poster" {
		t.Fatalf("lost now_showing: %+v", out.NowShowing)
	}
}

// TestStatusResponseOmitsEmpty verifies optional fields stay off the
// wire when unset so old clients keep parsing.
func TestStatusResponseOmitsEmpty(t *testing.T) {
	b, err := json.Marshal(StatusResponse{Phase: looplib.PhaseStarting, State: looplib.RotIdle})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for _, absent := range []string{"now_showing", "last_error", "downloads", "playlist_id"} {
		if strings.Contains(string(b), absent) {
			t.Errorf("expected %s to be omitted, got %s", absent, b)
		}
	}
}

func TestRenderReportJSON(t *testing.T) {
	in := `{"type": "result", "token": 7, "ok": false, "error": "decode failed"}`
	var r RenderReport
	if err := json.Unmarshal([]byte(in), &r); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if r.Type != BRIDGE_RESULT || r.Token != 7 || r.Ok || r.Error != "decode failed" {
		t.Fatalf("unexpected report: %+v", r)
	}
}
