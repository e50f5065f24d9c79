package services

import "testing"

func TestValidGatewayStatus(t *testing.T) {
	valid := []GatewayStatus{
		GatewayStatusAuthorized,
		GatewayStatusCaptured,
		GatewayStatusPaymentFailed,
		GatewayStatusRefunded,
		GatewayStatusPartiallyRefunded,
	}
	for _, status := range valid {
		if !ValidGatewayStatus(status) {
			t.Fatalf("expected %q to be valid", status)
		}
	}

	invalid := []GatewayStatus{"", "CAPTURED", "settled", "refund"}
	for _, status := range invalid {
		if ValidGatewayStatus(status) {
			t.Fatalf("expected %q to be invalid", status)
		}
	}
}
