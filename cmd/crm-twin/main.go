// crm-twin serves an in-memory copy of the CRM pages API for local runs.
// Point CRM_BASE_URL at it; GET /admin/pages dumps what the server wrote.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"mannypuntos/internal/crm/crmtwin"
)

func main() {
	port := flag.Int("port", 8090, "listen port")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", *port),
		Handler:           crmtwin.New().Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Info().Int("port", *port).Msg("crm-twin ready")
	if err := srv.ListenAndServe(); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}
