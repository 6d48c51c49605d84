package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound     = errors.New("recurso no encontrado")
	ErrInvalidInput = errors.New("entrada inválida")

	// ErrInvalidMovement: las cuatro cantidades en cero o alguna negativa. Se rechaza antes de tocar estado.
	ErrInvalidMovement = errors.New("movimiento inválido")
	// ErrStorageUnavailable: falla transitoria de persistencia. Se puede reintentar la operación completa.
	ErrStorageUnavailable = errors.New("almacenamiento no disponible")
	// ErrConcurrentModification: se violó la disciplina de bloqueo (versión desactualizada). No se reintenta.
	ErrConcurrentModification = errors.New("modificación concurrente detectada")
	// ErrChainInconsistency: la auditoría previa a la reparación encontró una cadena de periodos desalineada.
	ErrChainInconsistency = errors.New("cadena de periodos inconsistente")
	// ErrLockTimeout: no se obtuvo el bloqueo por (tenant, producto) dentro del tiempo de espera.
	ErrLockTimeout = errors.New("tiempo de espera agotado para el bloqueo")
	// ErrPropagationIncomplete: el movimiento quedó persistido pero la propagación hacia adelante no terminó.
	ErrPropagationIncomplete = errors.New("propagación de saldos incompleta")
)

// IsRetryable indica si el caller puede reintentar la operación (pista de reintento).
// Una propagación incompleta no es reintentable: el movimiento ya se guardó y repetirlo lo duplicaría;
// se completa con RepairProduct o con la siguiente escritura sobre el producto.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrPropagationIncomplete) {
		return false
	}
	return errors.Is(err, ErrStorageUnavailable) || errors.Is(err, ErrLockTimeout)
}
