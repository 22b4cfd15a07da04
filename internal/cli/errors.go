// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/des-work/Arcano-Desk-sub001/internal/extract"
	"github.com/des-work/Arcano-Desk-sub001/internal/hooks"
	"github.com/des-work/Arcano-Desk-sub001/internal/ollama"
	"github.com/des-work/Arcano-Desk-sub001/internal/storage"
)

// describeError adds a hint to errors a user can act on.
func describeError(err error) string {
	var ce *ollama.ClientError
	switch {
	case ollama.IsNotRunning(err):
		return hooks.UserMessage(err) + "\n  Start Ollama with: ollama serve"
	case errors.As(err, &ce) && ce.Type == ollama.ErrTypeModelNotFound:
		return fmt.Sprintf("%s\n  Install it with: ollama pull <model>   (list installed models with: arcano models)", hooks.UserMessage(err))
	case errors.As(err, &ce), errors.Is(err, context.DeadlineExceeded):
		return hooks.UserMessage(err)
	case errors.Is(err, hooks.ErrExtensionNotAllowed):
		return err.Error() + "\n  Allowed extensions are set under files.allowedExtensions in the settings."
	case errors.Is(err, extract.ErrUnsupportedType):
		return err.Error() + "\n  Supported documents: .pdf, .docx, .pptx, .txt"
	case errors.Is(err, storage.ErrInvalidData):
		return err.Error()
	case errors.Is(err, hooks.ErrFileNotFound):
		return err.Error() + "\n  List stored files with: arcano files list"
	}
	return err.Error()
}
