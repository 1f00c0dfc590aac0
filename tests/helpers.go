package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lithammer/shortuuid/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type CardPaymentRequest struct {
	Amount         string `json:"amount"`
	Currency       string `json:"currency"`
	CardNumber     string `json:"card_number"`
	CardHolderName string `json:"card_holder_name"`
	ExpiryMonth    int    `json:"expiry_month"`
	ExpiryYear     int    `json:"expiry_year"`
	CVV            string `json:"cvv"`
}

type PaymentResponse struct {
	PaymentID uuid.UUID `json:"payment_id"`
	Status    string    `json:"status"`
	Amount    string    `json:"amount"`
	Currency  string    `json:"currency"`
	CreatedAt time.Time `json:"created_at"`
}

type DeadLetter struct {
	PaymentID uuid.UUID `json:"payment_id"`
	Reason    string    `json:"reason"`
}

func sendCardPayment(t *testing.T, idempotencyKey string, amount string) PaymentResponse {
	t.Helper()

	payload, err := json.Marshal(CardPaymentRequest{
		Amount:         amount,
		Currency:       "AUD",
		CardNumber:     "4111111111111111",
		CardHolderName: "Jane Doe",
		ExpiryMonth:    12,
		ExpiryYear:     2030,
		CVV:            "123",
	})
	require.NoError(t, err)

	httpReq, err := http.NewRequest(
		http.MethodPost,
		"http://localhost:8080/payments/card",
		bytes.NewBuffer(payload),
	)
	require.NoError(t, err)

	httpReq.Header.Set("Correlation-ID", shortuuid.New())
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", idempotencyKey)

	resp, err := http.DefaultClient.Do(httpReq)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var payment PaymentResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payment))

	return payment
}

func getPayment(t *testing.T, paymentID uuid.UUID) (PaymentResponse, int) {
	t.Helper()

	resp, err := http.Get("http://localhost:8080/payments/" + paymentID.String())
	require.NoError(t, err)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return PaymentResponse{}, resp.StatusCode
	}

	var payment PaymentResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payment))

	return payment, resp.StatusCode
}

func getDeadLetters(t assert.TestingT) []DeadLetter {
	resp, err := http.Get("http://localhost:8080/dead-letters")
	if !assert.NoError(t, err) {
		return nil
	}
	defer resp.Body.Close()
	if !assert.Equal(t, http.StatusOK, resp.StatusCode) {
		return nil
	}

	var letters []DeadLetter
	if !assert.NoError(t, json.NewDecoder(resp.Body).Decode(&letters)) {
		return nil
	}

	return letters
}

func replayDeadLetters(t *testing.T) int {
	t.Helper()

	resp, err := http.Post("http://localhost:8080/dead-letters/replay", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result map[string]int
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))

	return result["replayed"]
}

func cancelPayment(t *testing.T, paymentID uuid.UUID) int {
	t.Helper()

	httpReq, err := http.NewRequest(
		http.MethodPatch,
		"http://localhost:8080/payments/"+paymentID.String()+"/cancel",
		nil,
	)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(httpReq)
	require.NoError(t, err)
	defer resp.Body.Close()

	return resp.StatusCode
}

func assertPaymentStatus(t *testing.T, paymentID uuid.UUID, expected string) {
	t.Helper()

	assert.EventuallyWithT(
		t,
		func(collectT *assert.CollectT) {
			payment, statusCode := getPayment(t, paymentID)
			if !assert.Equal(collectT, http.StatusOK, statusCode) {
				return
			}
			assert.Equal(collectT, expected, payment.Status)
		},
		10*time.Second,
		100*time.Millisecond,
	)
}

func waitForHttpServer(t *testing.T) {
	t.Helper()

	require.EventuallyWithT(
		t,
		func(t *assert.CollectT) {
			resp, err := http.Get("http://localhost:8080/health")
			if !assert.NoError(t, err) {
				return
			}
			defer resp.Body.Close()

			if assert.Less(t, resp.StatusCode, 300, "API not ready, http status: %d", resp.StatusCode) {
				return
			}
		},
		time.Second*10,
		time.Millisecond*50,
	)
}
