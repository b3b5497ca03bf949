package dto

import (
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSafeID(t *testing.T) {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	require.True(t, ok)

	type subject struct {
		Value string `binding:"safe_id"`
	}

	valid := []string{"order-123", "ref_42", "a.b.c", "0xAbCdEf", "bc1qxyz"}
	for _, s := range valid {
		assert.NoError(t, v.Struct(subject{Value: s}), "expected %q to validate", s)
	}

	invalid := []string{"", "a b", "<script>", "x;y", "a/b"}
	for _, s := range invalid {
		assert.Error(t, v.Struct(subject{Value: s}), "expected %q to fail", s)
	}
}

func TestSanitizeStruct(t *testing.T) {
	ext := "  <b>ref</b>  "
	req := CheckoutRequest{
		MerchantID: " 3fa85f64-5717-4562-b3fc-2c963f66afa6 ",
		Asset:      " btc ",
		AmountFiat: "100.00",
		ExternalID: &ext,
	}

	SanitizeStruct(&req)

	assert.Equal(t, "3fa85f64-5717-4562-b3fc-2c963f66afa6", req.MerchantID)
	assert.Equal(t, "btc", req.Asset)
	assert.Equal(t, "&lt;b&gt;ref&lt;/b&gt;", *req.ExternalID)
}

func TestSanitizeStruct_IgnoresNonStructs(t *testing.T) {
	s := "unchanged"
	SanitizeStruct(s)
	SanitizeStruct(&s)
	assert.Equal(t, "unchanged", s)
}
