package usecase

import (
	"errors"

	"BookPublisher/internal/domain"
)

func isMalformed(err error) bool {
	return errors.Is(err, domain.ErrMalformedRecord) || errors.Is(err, domain.ErrInvalidChapterID)
}
