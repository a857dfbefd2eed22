package routes

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"sort"
	"strings"

	"cdpchain/native/cdp"
	nativecommon "cdpchain/native/common"
	"cdpchain/native/oracle"
	"cdpchain/native/token"
)

const requestLimit = 1 << 20 // 1 MiB

var errEmptyBody = errors.New("request body is empty")

func decodeRequest(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()

	data, err := io.ReadAll(io.LimitReader(r.Body, requestLimit))
	if err != nil {
		return fmt.Errorf("read request body: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return errEmptyBody
	}
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

// decodeOptionalRequest is decodeRequest for endpoints whose body may be empty.
func decodeOptionalRequest(r *http.Request, dst interface{}) error {
	if err := decodeRequest(r, dst); err != nil && !errors.Is(err, errEmptyBody) {
		return err
	}
	return nil
}

// parseAmount parses a non-negative base-10 integer.
func parseAmount(field, raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("%s is required", field)
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("%s must be a base-10 integer", field)
	}
	if value.Sign() < 0 {
		return nil, fmt.Errorf("%s must not be negative", field)
	}
	return value, nil
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func sortPrices(prices []priceJSON) {
	sort.Slice(prices, func(i, j int) bool { return prices[i].Symbol < prices[j].Symbol })
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	payload, err := json.Marshal(body)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, fmt.Errorf("marshal response: %w", err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

func writeBadRequest(w http.ResponseWriter, err error) {
	writeJSONError(w, http.StatusBadRequest, err)
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	message := strings.TrimSpace(err.Error())
	if message == "" {
		message = http.StatusText(status)
	}
	payload, _ := json.Marshal(map[string]string{"error": message})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

// writeEngineError maps engine and collaborator errors to HTTP statuses.
// Unclassified errors are logged and reported as 500.
func (cr *cdpRoutes) writeEngineError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		cr.logger.Error("cdp request failed", slog.Any("error", err))
	}
	writeJSONError(w, status, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, cdp.ErrVaultNotFound),
		errors.Is(err, cdp.ErrUnknownCollateral),
		errors.Is(err, token.ErrUnknownToken):
		return http.StatusNotFound
	case errors.Is(err, cdp.ErrNotReady),
		errors.Is(err, nativecommon.ErrModulePaused),
		errors.Is(err, oracle.ErrStalePrice),
		errors.Is(err, oracle.ErrPriceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, token.ErrInsufficientBalance),
		errors.Is(err, token.ErrInsufficientAllowance):
		return http.StatusConflict
	case errors.Is(err, token.ErrInvalidAmount),
		errors.Is(err, token.ErrOverflow),
		errors.Is(err, token.ErrZeroAddress),
		errors.Is(err, oracle.ErrInvalidPrice):
		return http.StatusBadRequest
	}
	switch cdp.KindOf(err) {
	case cdp.KindValidation:
		return http.StatusBadRequest
	case cdp.KindAuthorization:
		return http.StatusForbidden
	case cdp.KindInvariantViolation:
		return http.StatusConflict
	case cdp.KindResourceExhaustion:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
