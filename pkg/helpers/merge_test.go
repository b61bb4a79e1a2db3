package helpers

import (
	"reflect"
	"testing"
)

func TestDeepMerge_ArraysReplace(t *testing.T) {
	defaults := map[string]any{
		"colors": []any{"#111", "#222", "#333"},
		"legend": map[string]any{"show": true, "position": "top"},
	}
	override := map[string]any{
		"colors": []any{"#f00"},
		"legend": map[string]any{"position": "bottom"},
	}

	got := DeepMerge(defaults, override)

	if colors := got["colors"].([]any); len(colors) != 1 || colors[0] != "#f00" {
		t.Errorf("expected override palette of 1 color, got %v", colors)
	}
	want := map[string]any{"show": true, "position": "bottom"}
	if !reflect.DeepEqual(got["legend"], want) {
		t.Errorf("legend = %v, want %v", got["legend"], want)
	}
}

func TestDeepMerge_DoesNotMutateInputs(t *testing.T) {
	defaults := map[string]any{"axis": map[string]any{"min": 0}}
	override := map[string]any{"axis": map[string]any{"max": 10}}

	got := DeepMerge(defaults, override)
	got["axis"].(map[string]any)["min"] = 5

	if defaults["axis"].(map[string]any)["min"] != 0 {
		t.Error("defaults mutated")
	}
	if _, ok := defaults["axis"].(map[string]any)["max"]; ok {
		t.Error("override leaked into defaults")
	}
}

func TestDeepMerge_ScalarReplacesObject(t *testing.T) {
	got := DeepMerge(map[string]any{"label": map[string]any{"show": true}}, map[string]any{"label": false})
	if got["label"] != false {
		t.Errorf("label = %v, want false", got["label"])
	}
}

func TestDeepMerge_Nil(t *testing.T) {
	got := DeepMerge(nil, nil)
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty map, got %v", got)
	}
}
