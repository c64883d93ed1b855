package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizarEstado(t *testing.T) {
	cases := map[string]string{
		"pendiente_entrega":  EstadoPendienteEntrega,
		"Pendiente Entrega":  EstadoPendienteEntrega,
		"pendiente-entrega":  EstadoPendienteEntrega,
		"EN LISTA":           EstadoEnLista,
		"agendado":           EstadoEnLista,
		"Agendado":           EstadoEnLista,
		" entregado ":        EstadoEntregado,
		"Completado":         EstadoCompletado,
		"completádo":         EstadoCompletado,
	}
	for in, want := range cases {
		got, ok := NormalizarEstado(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	_, ok := NormalizarEstado("cancelado")
	assert.False(t, ok)
	_, ok = NormalizarEstado("")
	assert.False(t, ok)
}

func TestSiguienteEstado(t *testing.T) {
	next, ok := SiguienteEstado(EstadoPendienteEntrega)
	assert.True(t, ok)
	assert.Equal(t, EstadoEnLista, next)

	next, ok = SiguienteEstado(EstadoEnLista)
	assert.True(t, ok)
	assert.Equal(t, EstadoEntregado, next)

	next, ok = SiguienteEstado(EstadoEntregado)
	assert.True(t, ok)
	assert.Equal(t, EstadoCompletado, next)

	_, ok = SiguienteEstado(EstadoCompletado)
	assert.False(t, ok)
}

func TestLinkRegalo_Vencido(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	sinVencimiento := &LinkRegalo{Vigencia: VigenciaSinVencimiento}
	assert.False(t, sinVencimiento.Vencido(now))

	ayer := now.Add(-24 * time.Hour)
	porFecha := &LinkRegalo{Vigencia: VigenciaFecha, ExpiraEn: &ayer}
	assert.True(t, porFecha.Vencido(now))

	manana := now.Add(24 * time.Hour)
	porFecha.ExpiraEn = &manana
	assert.False(t, porFecha.Vencido(now))

	dias := 7
	porDias := &LinkRegalo{Vigencia: VigenciaDias, DiasValidez: &dias, CreatedAt: now.AddDate(0, 0, -8)}
	assert.True(t, porDias.Vencido(now))
	porDias.CreatedAt = now.AddDate(0, 0, -6)
	assert.False(t, porDias.Vencido(now))
}
