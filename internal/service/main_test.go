package service

import (
	"os"
	"testing"

	"github.com/iliyamo/college-admission/internal/logger"
)

func TestMain(m *testing.M) {
	logger.Initialize("panic", "text")
	os.Exit(m.Run())
}
