package logging

import (
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewParsesLevelAndFormat(t *testing.T) {
	log := New("debug", "json")
	if log.Level != logrus.DebugLevel {
		t.Fatalf("expected debug level, got %s", log.Level)
	}
	if _, ok := log.Formatter.(*logrus.JSONFormatter); !ok {
		t.Fatalf("expected json formatter, got %T", log.Formatter)
	}
}

func TestNewFallsBackToInfo(t *testing.T) {
	log := New("loud", "")
	if log.Level != logrus.InfoLevel {
		t.Fatalf("expected info level, got %s", log.Level)
	}
	if _, ok := log.Formatter.(*logrus.TextFormatter); !ok {
		t.Fatalf("expected text formatter, got %T", log.Formatter)
	}
}
