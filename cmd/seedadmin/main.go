// seedadmin creates or promotes an admin account. Admin authority is only
// granted here, never through the API.
// Uso: go run ./cmd/seedadmin -telefono 5491100000000 -pin 1234 -nombre "Manny"
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm/clause"

	"mannypuntos/internal/config"
	"mannypuntos/internal/infra"
	"mannypuntos/internal/model"
)

func main() {
	telefono := flag.String("telefono", "", "teléfono del admin")
	pin := flag.String("pin", "", "PIN de acceso (4-12 dígitos)")
	nombre := flag.String("nombre", "Admin", "nombre visible")
	flag.Parse()

	if *telefono == "" || len(*pin) < 4 || len(*pin) > 12 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect error")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(*pin), 12)
	if err != nil {
		log.Fatal().Err(err).Msg("bcrypt error")
	}

	admin := &model.Cliente{
		Telefono: *telefono,
		Nombre:   *nombre,
		Rol:      model.RolAdmin,
		PinHash:  string(hash),
	}
	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "telefono"}},
		DoUpdates: clause.AssignmentColumns([]string{"pin_hash", "rol", "nombre", "updated_at"}),
	}).Create(admin).Error
	if err != nil {
		log.Fatal().Err(err).Msg("upsert error")
	}
	fmt.Printf("Admin %s listo (rol=%s)\n", *telefono, model.RolAdmin)
}
