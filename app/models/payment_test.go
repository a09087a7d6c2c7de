package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentValidate(t *testing.T) {
	valid := &Payment{
		UserID:          7,
		PaymentMethod:   PaymentMethodStripe,
		PaymentIntentID: StringPtr("pi_1"),
	}
	assert.NoError(t, valid.Validate())

	noUser := &Payment{PaymentMethod: PaymentMethodStripe, PaymentIntentID: StringPtr("pi_1")}
	require.Error(t, noUser.Validate())
	assert.ErrorIs(t, noUser.Validate(), ErrPaymentWithoutUser)

	noMethod := &Payment{UserID: 7, PaymentIntentID: StringPtr("pi_1")}
	assert.Error(t, noMethod.Validate())

	noProviderID := &Payment{UserID: 7, PaymentMethod: PaymentMethodPayPal}
	assert.Error(t, noProviderID.Validate())
}

func TestPaymentProviderKey(t *testing.T) {
	stripePayment := &Payment{PaymentIntentID: StringPtr("pi_1")}
	assert.Equal(t, "pi_1", stripePayment.ProviderKey())

	paypalPayment := &Payment{PayPalOrderID: StringPtr("SALE-1")}
	assert.Equal(t, "SALE-1", paypalPayment.ProviderKey())

	assert.Empty(t, (&Payment{}).ProviderKey())
}

func TestMajorUnits(t *testing.T) {
	assert.Equal(t, 9.99, MajorUnits(999))
	assert.Equal(t, 10.0, MajorUnits(1000))
	assert.Equal(t, 0.0, MajorUnits(0))
	assert.Equal(t, 0.01, MajorUnits(1))
}

func TestStringPtr(t *testing.T) {
	assert.Nil(t, StringPtr(""))
	require.NotNil(t, StringPtr("x"))
	assert.Equal(t, "x", *StringPtr("x"))
}
