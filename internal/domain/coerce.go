package domain

/*
Файл coerce.go — граница приема данных. Входные JSON формирует внешний пайплайн
(сканер, IA-движок, responder), поэтому типы полей не гарантированы: score может
прийти строкой, cves — null, элемент массива — вообще не объектом.
Вся "мягкая" нормализация живет здесь, агрегация работает уже с типизированными
записями и не делает разрозненных nil-проверок.
*/

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// decodeCollection разбирает JSON-массив. Валидный JSON, который не является
// массивом, дает пустую коллекцию (а не ошибку). Ошибка — только битый JSON.
func decodeCollection[T any](data []byte, decode func(json.RawMessage) T) ([]T, error) {
	trimmed := bytes.TrimSpace(data)
	if !json.Valid(trimmed) {
		return nil, fmt.Errorf("invalid json payload (%d bytes)", len(data))
	}

	result := make([]T, 0)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return result, nil
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(trimmed, &elems); err != nil {
		return nil, fmt.Errorf("decode array: %w", err)
	}
	for _, elem := range elems {
		result = append(result, decode(elem))
	}
	return result, nil
}

// isObject — элементы-не-объекты превращаются в пустые записи.
func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// coerceNumber повторяет семантику "нестрогого" числа: числа и числовые строки
// принимаются, true/false дают 1/0, все остальное (включая NaN) — отсутствие значения.
func coerceNumber(raw json.RawMessage) *float64 {
	if isNull(raw) {
		return nil
	}
	trimmed := bytes.TrimSpace(raw)

	var v float64
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		v = parsed
	case 't':
		v = 1
	case 'f':
		v = 0
	default:
		if err := json.Unmarshal(trimmed, &v); err != nil {
			return nil
		}
	}

	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// coerceString принимает строки и числа (идентификатор хоста иногда приходит числом).
func coerceString(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	trimmed := bytes.TrimSpace(raw)

	switch {
	case trimmed[0] == '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return ""
		}
		return s
	case trimmed[0] == '-' || (trimmed[0] >= '0' && trimmed[0] <= '9'):
		return string(trimmed)
	default:
		return ""
	}
}

// coerceStrings — последовательность строк; не-массив дает пустой слайс,
// не-строковые элементы пропускаются. Порядок сохраняется.
func coerceStrings(raw json.RawMessage) []string {
	result := make([]string, 0)
	if isNull(raw) {
		return result
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return result
	}
	for _, elem := range elems {
		trimmed := bytes.TrimSpace(elem)
		if len(trimmed) == 0 || trimmed[0] != '"' {
			continue
		}
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			result = append(result, s)
		}
	}
	return result
}

func coerceInt(raw json.RawMessage) int {
	if v := coerceNumber(raw); v != nil {
		return int(*v)
	}
	return 0
}
