// Package service 包含了应用的业务逻辑层。
package service

import (
	"errors"

	"studymind-go/internal/pipeline"
)

var (
	ErrMaterialNotFound = pipeline.ErrMaterialNotFound
	ErrDownloadFailed   = pipeline.ErrDownloadFailed
	ErrNoExtractedText  = errors.New("material has no extracted text yet")
	ErrSessionNotFound  = errors.New("doubt session not found")
	ErrSessionTooShort  = errors.New("study session must last at least 10 seconds")
	ErrInvalidQuiz      = errors.New("invalid quiz payload")
	ErrQuizMismatch     = errors.New("totalQuestions does not match the quiz")
	ErrFileTooLarge     = errors.New("file too large")
)
