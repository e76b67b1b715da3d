package engine_test

import (
	"errors"
	"testing"

	"github.com/draftroom/auction-engine/internal/engine"
)

func TestParseSessionID(t *testing.T) {
	tests := []struct {
		in        string
		auctionID string
		teamID    string
		wantErr   bool
	}{
		{"auc1_team1", "auc1", "team1", false},
		// Only the first separator splits; team ids may carry their own.
		{"auc1_team_one", "auc1", "team_one", false},
		{"auc1", "", "", true},
		{"_team1", "", "", true},
		{"auc1_", "", "", true},
		{"", "", "", true},
	}

	for _, tt := range tests {
		sid, err := engine.ParseSessionID(tt.in)
		if tt.wantErr {
			if !errors.Is(err, engine.ErrInvalidSession) {
				t.Errorf("ParseSessionID(%q): expected ErrInvalidSession, got %v", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseSessionID(%q): %v", tt.in, err)
			continue
		}
		if sid.AuctionID != tt.auctionID || sid.TeamID != tt.teamID {
			t.Errorf("ParseSessionID(%q) = %+v", tt.in, sid)
		}
	}
}

func TestSessionIDString(t *testing.T) {
	sid := engine.SessionID{AuctionID: "auc1", TeamID: "team1"}
	if got := sid.String(); got != "auc1_team1" {
		t.Errorf("String() = %q", got)
	}
}
