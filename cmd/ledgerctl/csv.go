package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

var csvHeader = []string{"timestamp", "product_id", "added", "used", "expired", "damaged", "source_reference"}

// csvMovement fila válida del archivo de importación.
type csvMovement struct {
	Line            int
	Timestamp       time.Time
	ProductID       string
	Quantities      entity.MovementQuantities
	SourceReference string
}

// decodeReader envuelve r para decodificar ISO-8859-1 a UTF-8 cuando se pide.
func decodeReader(r io.Reader, encoding string) (io.Reader, error) {
	switch strings.ToLower(encoding) {
	case "", "utf8", "utf-8":
		return r, nil
	case "latin1", "iso-8859-1", "iso8859-1":
		return transform.NewReader(r, charmap.ISO8859_1.NewDecoder()), nil
	}
	return nil, fmt.Errorf("codificación no soportada: %q", encoding)
}

// parseMovementsCSV valida el archivo completo antes de registrar nada.
func parseMovementsCSV(r io.Reader) ([]csvMovement, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(csvHeader)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("leer cabecera: %w", err)
	}
	for i, h := range csvHeader {
		if !strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff")), h) {
			return nil, fmt.Errorf("cabecera: columna %d es %q, se esperaba %q", i+1, header[i], h)
		}
	}

	var out []csvMovement
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("línea %d: %w", line, err)
		}
		m, err := parseRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("línea %d: %w", line, err)
		}
		m.Line = line
		out = append(out, m)
	}
	return out, nil
}

func parseRecord(rec []string) (csvMovement, error) {
	ts, err := time.Parse(time.RFC3339, strings.TrimSpace(rec[0]))
	if err != nil {
		return csvMovement{}, fmt.Errorf("timestamp: %w", err)
	}
	productID := strings.TrimSpace(rec[1])
	if productID == "" {
		return csvMovement{}, fmt.Errorf("product_id vacío")
	}
	var qty [4]int64
	for i := range qty {
		s := strings.TrimSpace(rec[2+i])
		if s == "" {
			continue
		}
		if qty[i], err = strconv.ParseInt(s, 10, 64); err != nil {
			return csvMovement{}, fmt.Errorf("%s: %w", csvHeader[2+i], err)
		}
	}
	q := entity.MovementQuantities{Added: qty[0], Used: qty[1], Expired: qty[2], Damaged: qty[3]}
	if err := inventory.ValidateMovement(q); err != nil {
		return csvMovement{}, err
	}
	return csvMovement{
		Timestamp:       ts,
		ProductID:       productID,
		Quantities:      q,
		SourceReference: strings.TrimSpace(rec[6]),
	}, nil
}
