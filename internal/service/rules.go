package service

import (
	"errors"

	"github.com/iliyamo/college-admission/internal/model"
)

// errNoChange marks a transition whose target state already holds. The
// surrounding transaction is rolled back and the call reports success.
var errNoChange = errors.New("no change")

func draftError(op string, id uint64) error {
	return &TransitionError{Op: op, ApplicationID: id, Reason: "application is still a draft", cause: ErrDraftApplication}
}

func checkSubmit(a *model.Application) error {
	if !a.IsDraft {
		return errNoChange
	}
	return nil
}

// checkAdminReview guards approve and reject. An admin rejection is
// final; otherwise review stays open until documents are rejected or the
// officer records a final decision.
func checkAdminReview(a *model.Application, target model.AdminStatus) error {
	op := "approve"
	if target == model.AdminRejected {
		op = "reject"
	}
	if a.IsDraft {
		return draftError(op, a.ID)
	}
	if a.Status == target {
		return errNoChange
	}
	if a.Status == model.AdminRejected {
		return invalidTransition(op, a.ID, "application was rejected by admin")
	}
	if a.OfficerVerified == model.VerificationRejected {
		return invalidTransition(op, a.ID, "documents were rejected")
	}
	switch a.SelectionStatus {
	case model.SelectionSelected, model.SelectionRejected:
		return invalidTransition(op, a.ID, "selection already "+string(a.SelectionStatus))
	}
	return nil
}

func checkVerify(a *model.Application, verified bool) error {
	const op = "verify documents of"
	if a.IsDraft {
		return draftError(op, a.ID)
	}
	if a.Status != model.AdminApproved {
		return invalidTransition(op, a.ID, "application is "+string(a.Status)+", not approved")
	}
	if verified {
		if a.OfficerVerified == model.VerificationVerified {
			return errNoChange
		}
		return nil
	}
	switch a.SelectionStatus {
	case model.SelectionSelected, model.SelectionRejected:
		return invalidTransition(op, a.ID, "selection already "+string(a.SelectionStatus))
	}
	return nil
}

// checkTerminal rejects any officer action on an application that has
// left the workflow.
func checkTerminal(op string, a *model.Application) error {
	switch {
	case a.OfficerVerified == model.VerificationRejected:
		return invalidTransition(op, a.ID, "documents were rejected")
	case a.Status == model.AdminRejected:
		return invalidTransition(op, a.ID, "application was rejected by admin")
	case a.SelectionStatus == model.SelectionRejected:
		return invalidTransition(op, a.ID, "selection already rejected")
	}
	return nil
}

// checkSteps reports the first unmet step in the canonical order
// approval, documents, interview.
func checkSteps(a *model.Application, needInterview bool) error {
	if a.Status != model.AdminApproved {
		return precondition(a.ID, StepAdminApproval)
	}
	if a.OfficerVerified != model.VerificationVerified {
		return precondition(a.ID, StepDocumentsVerified)
	}
	if needInterview && a.InterviewDate == nil {
		return precondition(a.ID, StepInterviewScheduled)
	}
	return nil
}

func checkInterview(a *model.Application) error {
	const op = "schedule interview for"
	if a.IsDraft {
		return draftError(op, a.ID)
	}
	if err := checkTerminal(op, a); err != nil {
		return err
	}
	if a.SelectionStatus == model.SelectionSelected {
		return invalidTransition(op, a.ID, "applicant already selected")
	}
	return checkSteps(a, false)
}

// checkDecision guards the officer's final decision. Re-selecting a
// selected application is a no-op.
func checkDecision(a *model.Application, d model.SelectionStatus) error {
	op := "mark " + string(d)
	if a.IsDraft {
		return draftError(op, a.ID)
	}
	if err := checkTerminal(op, a); err != nil {
		return err
	}
	if a.SelectionStatus == model.SelectionSelected {
		if d == model.SelectionSelected {
			return errNoChange
		}
		return invalidTransition(op, a.ID, "applicant already selected")
	}
	if err := checkSteps(a, true); err != nil {
		return err
	}
	if a.SelectionStatus == d {
		return errNoChange
	}
	return nil
}

func checkPayment(a *model.Application) error {
	const op = "confirm payment for"
	if a.IsDraft {
		return draftError(op, a.ID)
	}
	if a.Payment.Status == model.PaymentPaid {
		return errNoChange
	}
	if a.SelectionStatus != model.SelectionSelected {
		return invalidTransition(op, a.ID, "applicant is not selected")
	}
	return nil
}
