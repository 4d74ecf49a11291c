// ABOUTME: Courtesy tool for thanks and other pleasantries
// ABOUTME: Replies with a fixed friendly phrase, no external calls

package tools

import "context"

// CourtesyTool answers social niceties so they never reach the language
// model.
type CourtesyTool struct{}

func NewCourtesyTool() *CourtesyTool {
	return &CourtesyTool{}
}

func (t *CourtesyTool) Name() string { return "courtesy" }

func (t *CourtesyTool) Description() string {
	return "Responde a agradecimientos y otras cortesías."
}

func (t *CourtesyTool) Execute(_ context.Context, _ Request) (string, error) {
	return "¡De nada! Estoy aquí para ayudarte.", nil
}
