package models

import (
	"encoding/json"
	"testing"
)

func TestActionTypeUnmarshalNarrowing(t *testing.T) {
	var at ActionType
	if err := json.Unmarshal([]byte(`"PASS"`), &at); err != nil {
		t.Fatalf("valid action rejected: %v", err)
	}
	if at != ActionTypePass {
		t.Fatalf("got %s", at)
	}
	if err := json.Unmarshal([]byte(`"SHRED"`), &at); err == nil {
		t.Fatal("unknown action accepted")
	}
}

func TestSessionStatusNormalizesBritishSpelling(t *testing.T) {
	var status SessionStatus
	if err := json.Unmarshal([]byte(`"CANCELLED"`), &status); err != nil {
		t.Fatalf("CANCELLED rejected: %v", err)
	}
	if status != SessionStatusCanceled {
		t.Fatalf("got %s", status)
	}
	if err := json.Unmarshal([]byte(`"ARCHIVED"`), &status); err == nil {
		t.Fatal("unknown status accepted")
	}
}

func TestSessionStatusTerminal(t *testing.T) {
	if SessionStatusInProgress.Terminal() {
		t.Fatal("IN_PROGRESS reported terminal")
	}
	if !SessionStatusSubmitted.Terminal() || !SessionStatusCanceled.Terminal() {
		t.Fatal("terminal statuses not reported terminal")
	}
}

func TestActionTypeClassification(t *testing.T) {
	if !ActionTypeDisposeExpired.IsDisposal() || !ActionTypeUnregisteredDispose.IsDisposal() {
		t.Fatal("disposal types misclassified")
	}
	if ActionTypePass.IsDisposal() || ActionTypePass.IsWarning() {
		t.Fatal("PASS misclassified")
	}
	if !ActionTypeWarnInfoMismatch.IsWarning() || !ActionTypeWarnStoragePoor.IsWarning() {
		t.Fatal("warning types misclassified")
	}
}

func TestResourceStatusUnmarshalNarrowing(t *testing.T) {
	var status ResourceStatus
	if err := json.Unmarshal([]byte(`"REPORTED"`), &status); err != nil {
		t.Fatalf("valid status rejected: %v", err)
	}
	if err := json.Unmarshal([]byte(`"BROKEN"`), &status); err == nil {
		t.Fatal("unknown resource status accepted")
	}
}
