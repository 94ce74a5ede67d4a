package dto

import (
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
)

func TestSanitizeStruct_TrimsAndEscapes(t *testing.T) {
	req := CreateWalletRequest{
		DisplayName: "  O'Brien & <Sons>  ",
		PhoneNumber: " <+15550100001> ",
		PIN:         " 1234 ",
	}
	SanitizeStruct(&req)

	assert.Equal(t, "O'Brien & <Sons>", req.DisplayName, "display names are stored as typed")
	assert.Equal(t, "&lt;+15550100001&gt;", req.PhoneNumber)
	assert.Equal(t, "1234", req.PIN)
}

func TestSanitizeStruct_SignedTextOnlyTrimmed(t *testing.T) {
	req := PaymentQRRequest{ToWalletID: " W000000000002 ", Description: "  Tom & Jerry  "}
	SanitizeStruct(&req)

	assert.Equal(t, "W000000000002", req.ToWalletID)
	assert.Equal(t, "Tom & Jerry", req.Description)
}

func TestSanitizeStruct_VoucherCodesUpperCased(t *testing.T) {
	code := "  abc123 "
	req := CreateCashInRequest{Method: " voucher ", VoucherCode: &code}
	SanitizeStruct(&req)

	assert.Equal(t, "voucher", req.Method)
	assert.Equal(t, "ABC123", *req.VoucherCode)
	assert.Nil(t, req.AgentID)

	check := ValidateVoucherRequest{Code: "gift25"}
	SanitizeStruct(&check)
	assert.Equal(t, "GIFT25", check.Code)
}

func TestSanitizeStruct_IgnoresNonStructPointers(t *testing.T) {
	s := " hello "
	SanitizeStruct(s)
	SanitizeStruct(&s)
	assert.Equal(t, " hello ", s)
}

func TestWalletIDRule(t *testing.T) {
	for _, id := range []string{"W000000000001", "W999999999999"} {
		assert.NoError(t, binding.Validator.ValidateStruct(LoginRequest{WalletID: id, PIN: "1234"}), id)
	}
	for _, id := range []string{"", "W123", "w000000000001", "W0000000000011", "X000000000001", "W00000000000A"} {
		assert.Error(t, binding.Validator.ValidateStruct(LoginRequest{WalletID: id, PIN: "1234"}), id)
	}
}

func TestReferenceRule(t *testing.T) {
	for _, ref := range []string{"agent-001", "ABC123", "acct_1.x"} {
		assert.True(t, referenceRe.MatchString(ref), "expected valid: %s", ref)
	}
	for _, ref := range []string{"", "-lead", "ref 01", "ref<001>", "ref;DROP", "a\nb"} {
		assert.False(t, referenceRe.MatchString(ref), "expected invalid: %q", ref)
	}
}

func TestMaskAccountNumber(t *testing.T) {
	assert.Equal(t, "******7890", MaskAccountNumber("1234567890"))
	assert.Equal(t, "1234", MaskAccountNumber("1234"))
	assert.Equal(t, "", MaskAccountNumber(""))
}
