package flow

import (
	"errors"
	"testing"
	"time"

	"github.com/BTreeMap/BrandOS/internal/models"
	"github.com/google/go-cmp/cmp"
)

func TestDecode(t *testing.T) {
	n := models.Notification{ID: "9", Kind: models.NotificationDraft, Status: models.StatusNew}
	tests := []struct {
		name string
		in   EventInput
		want Event
	}{
		{"company type", EventInput{Type: "selectCompanyType", Value: "smb"}, SelectCompanyType{Type: models.CompanyTypeSMB}},
		{"stage", EventInput{Type: "selectCompanyStage", Value: "smb-2-5"}, SelectCompanyStage{Stage: models.StageSmb2to5}},
		{"flow", EventInput{Type: "selectFlow", Value: "tactico"}, SelectFlow{Flow: models.FlowTypeTactico}},
		{"plan", EventInput{Type: "selectPlan", Value: "premium"}, SelectPlan{Plan: models.PlanTypePremium}},
		{"view", EventInput{Type: "setActiveView", Value: "report"}, SetActiveView{View: models.ViewReport}},
		{"filter", EventInput{Type: "setNotificationFilter", Value: "drafts"}, SetNotificationFilter{Filter: models.FilterDrafts}},
		{"notification", EventInput{Type: "openNotification", Notification: &n}, OpenNotification{Notification: n}},
		{"answers", EventInput{Type: "updateAnswers", Answers: map[string]string{"a": "b"}}, UpdateAnswers{Answers: map[string]string{"a": "b"}}},
		{"back", EventInput{Type: "goBack"}, GoBack{}},
		{"addon", EventInput{Type: "purchaseDocumentAddon"}, PurchaseDocumentAddon{}},
		{"advance", EventInput{Type: "advanceQuestionnaire"}, AdvanceQuestionnaire{}},
		{"retreat", EventInput{Type: "retreatQuestionnaire"}, RetreatQuestionnaire{}},
		{"reset", EventInput{Type: "reset"}, Reset{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.in)
			if err != nil {
				t.Fatalf("Decode error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Decode mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []EventInput{
		{Type: "teleport"},
		{Type: "selectCompanyType", Value: "coop"},
		{Type: "selectPlan", Value: "gold"},
		{Type: "setActiveView", Value: ""},
		{Type: "openNotification"},
	}
	for _, in := range tests {
		if _, err := Decode(in); err == nil {
			t.Errorf("Decode(%+v) should fail", in)
		}
	}
	if _, err := Decode(EventInput{Type: "teleport"}); !errors.Is(err, models.ErrUnknownValue) {
		t.Errorf("unknown event type should wrap ErrUnknownValue, got %v", err)
	}
}

func TestMockServicesValidate(t *testing.T) {
	timer := NewManualTimer()
	chat := NewChatResponder(timer, time.Second)
	if _, err := chat.Respond("\t\n", func(string) {}); !errors.Is(err, models.ErrEmptyMessage) {
		t.Errorf("blank message error = %v", err)
	}

	var reply string
	if _, err := chat.Respond("hola", func(r string) { reply = r }); err != nil {
		t.Fatal(err)
	}
	timer.Flush()
	if reply != CannedReply {
		t.Errorf("reply = %q", reply)
	}

	analyzer := NewDocumentAnalyzer(timer, time.Second)
	if _, err := analyzer.Analyze(false, "a.pdf", func(map[string]string) {}); !errors.Is(err, models.ErrAddonRequired) {
		t.Errorf("analysis without add-on error = %v", err)
	}
	var fields map[string]string
	if _, err := analyzer.Analyze(true, "a.pdf", func(f map[string]string) { fields = f }); err != nil {
		t.Fatal(err)
	}
	timer.Flush()
	if diff := cmp.Diff(AnalysisResult(), fields); diff != "" {
		t.Errorf("analysis fields (-want +got):\n%s", diff)
	}
	fields["name"] = "changed"
	if AnalysisResult()["name"] == "changed" {
		t.Error("AnalysisResult must return a copy")
	}
}
