package tasks

import (
	"encoding/json"
	"testing"
)

func TestNewCVRenderTask(t *testing.T) {
	task, err := NewCVRenderTask(7, "doc-7", 3, "corr-1")
	if err != nil {
		t.Fatalf("new task: %v", err)
	}
	if task.Type() != TypeCVRender {
		t.Fatalf("type = %q", task.Type())
	}

	var payload CVRenderPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	want := CVRenderPayload{CVID: 7, PublicID: "doc-7", Revision: 3, CorrelationID: "corr-1"}
	if payload != want {
		t.Fatalf("payload = %+v", payload)
	}
}
