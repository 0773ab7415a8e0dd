package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplicationStage(t *testing.T) {
	now := time.Now().UTC()
	letter := "letters/1.txt"

	tests := []struct {
		name string
		app  Application
		want Stage
	}{
		{"draft", Application{IsDraft: true, Status: AdminApproved}, StageDraft},
		{"submitted", Application{Status: AdminPending, OfficerVerified: VerificationUnset, SelectionStatus: SelectionNone}, StageSubmitted},
		{"admin approved", Application{Status: AdminApproved, OfficerVerified: VerificationUnset, SelectionStatus: SelectionNone}, StageAdminReviewed},
		{"documents verified", Application{Status: AdminApproved, OfficerVerified: VerificationVerified, SelectionStatus: SelectionNone}, StageDocumentsVerified},
		{"interview", Application{Status: AdminApproved, OfficerVerified: VerificationVerified, InterviewDate: &now, SelectionStatus: SelectionNone}, StageInterviewScheduled},
		{"waitlisted", Application{Status: AdminApproved, OfficerVerified: VerificationVerified, InterviewDate: &now, SelectionStatus: SelectionWaitlisted}, StageSelectionDecided},
		{"paid", Application{Status: AdminApproved, OfficerVerified: VerificationVerified, InterviewDate: &now, SelectionStatus: SelectionSelected, Payment: Payment{Status: PaymentPaid}}, StagePaymentDone},
		{"letter", Application{Status: AdminApproved, OfficerVerified: VerificationVerified, InterviewDate: &now, SelectionStatus: SelectionSelected, Payment: Payment{Status: PaymentPaid}, AdmissionLetterPath: &letter}, StageLetterIssued},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.app.Stage())
		})
	}
}

func TestApplicationIsTerminal(t *testing.T) {
	letter := "letters/1.txt"

	assert.True(t, (&Application{Status: AdminRejected}).IsTerminal())
	assert.True(t, (&Application{Status: AdminApproved, OfficerVerified: VerificationRejected}).IsTerminal())
	assert.True(t, (&Application{SelectionStatus: SelectionRejected}).IsTerminal())
	assert.True(t, (&Application{SelectionStatus: SelectionSelected, Payment: Payment{Status: PaymentPaid}, AdmissionLetterPath: &letter}).IsTerminal())

	assert.False(t, (&Application{Status: AdminApproved, SelectionStatus: SelectionWaitlisted}).IsTerminal())
	assert.False(t, (&Application{Status: AdminApproved, SelectionStatus: SelectionSelected, Payment: Payment{Status: PaymentPaid}}).IsTerminal())
}

func TestParseDecision(t *testing.T) {
	d, err := ParseDecision(" Selected ")
	require.NoError(t, err)
	assert.Equal(t, SelectionSelected, d)

	_, err = ParseDecision("none")
	assert.Error(t, err)
	_, err = ParseDecision("")
	assert.Error(t, err)
}

func TestFirstPreference(t *testing.T) {
	_, ok := (&Application{}).FirstPreference()
	assert.False(t, ok)

	zero := uint64(0)
	_, ok = (&Application{CoursePreference1: &zero}).FirstPreference()
	assert.False(t, ok)

	id := uint64(7)
	got, ok := (&Application{CoursePreference1: &id}).FirstPreference()
	assert.True(t, ok)
	assert.Equal(t, uint64(7), got)
}

func TestUploadsSet(t *testing.T) {
	var u Uploads
	for _, f := range UploadFields {
		require.True(t, u.Set(f, "applications/"+f+".pdf"), f)
	}
	assert.False(t, u.Set("passport", "x.pdf"))

	require.NotNil(t, u.PhotoPath)
	assert.Equal(t, "applications/photo.pdf", *u.PhotoPath)
	require.NotNil(t, u.EntranceCardPath)
	assert.Equal(t, "applications/entrance_card.pdf", *u.EntranceCardPath)
	require.NotNil(t, u.IDProofPath)
	assert.Equal(t, "applications/id_proof.pdf", *u.IDProofPath)
}
