package bootstrap

import (
	"net/http"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestServeHTTP_ListenFailureReportedAsFault(t *testing.T) {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	app := &App{
		Log:        log,
		Fatal:      make(chan error, 1),
		HttpServer: &http.Server{Addr: "127.0.0.1:-1"},
	}

	app.serveHTTP()

	select {
	case err := <-app.Fatal:
		assert.Error(t, err, "listen failure must surface on the fault channel")
	case <-time.After(2 * time.Second):
		t.Fatal("expected a fault for an unlistenable address")
	}
}
