package service

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"studymind-go/pkg/llm"
)

const quizToolName = "generate_quiz"

var validate = validator.New()

// GeneratedQuestion 是 generate_quiz 工具调用返回的一道题。
type GeneratedQuestion struct {
	Question    string   `json:"question" validate:"required"`
	Options     []string `json:"options" validate:"len=4,dive,required"`
	Correct     *int     `json:"correct" validate:"required,min=0,max=3"`
	Explanation string   `json:"explanation" validate:"required"`
}

type quizPayload struct {
	Questions []GeneratedQuestion `json:"questions" validate:"required,dive"`
}

// quizTool 描述 generate_quiz 函数，网关被强制调用它。
func quizTool() llm.Tool {
	return llm.Tool{
		Name:        quizToolName,
		Description: "Return quiz questions as structured data",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"questions": {
					"type": "array",
					"items": {
						"type": "object",
						"properties": {
							"question": { "type": "string" },
							"options": { "type": "array", "items": { "type": "string" }, "minItems": 4, "maxItems": 4 },
							"correct": { "type": "integer", "description": "Index of the correct option (0-3)" },
							"explanation": { "type": "string", "description": "Brief explanation of why the answer is correct" }
						},
						"required": ["question", "options", "correct", "explanation"],
						"additionalProperties": false
					}
				}
			},
			"required": ["questions"],
			"additionalProperties": false
		}`),
	}
}

// ParseQuizPayload 解析并校验工具调用参数。题目少于 count 时返回 ErrInvalidQuiz，多出的题目被丢弃。
func ParseQuizPayload(raw []byte, count int) ([]GeneratedQuestion, error) {
	var payload quizPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuiz, err)
	}
	if err := validate.Struct(payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuiz, err)
	}
	if len(payload.Questions) < count {
		return nil, fmt.Errorf("%w: got %d questions, want %d", ErrInvalidQuiz, len(payload.Questions), count)
	}
	return payload.Questions[:count], nil
}
