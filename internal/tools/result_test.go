package tools

import "testing"

func TestOk_IsNotAnError(t *testing.T) {
	r := Ok("done")
	if r.IsError {
		t.Fatal("expected Ok result to not be an error")
	}
	if r.ForLLM != "done" {
		t.Fatalf("expected ForLLM=done, got %q", r.ForLLM)
	}
}

func TestErrTool_CarriesKind(t *testing.T) {
	r := ErrTool("capability_denied", "missing capability inject.exec")
	if !r.IsError {
		t.Fatal("expected ErrTool result to be an error")
	}
	if r.ErrKind != "capability_denied" {
		t.Fatalf("expected kind capability_denied, got %q", r.ErrKind)
	}
}

func TestOkWithUser_SetsBothChannels(t *testing.T) {
	r := OkWithUser("for the model", "for the human")
	if r.ForLLM != "for the model" || r.ForUser != "for the human" {
		t.Fatalf("unexpected result: %+v", r)
	}
}
