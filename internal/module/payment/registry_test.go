package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Register(t *testing.T) {
	t.Run("first registered becomes default", func(t *testing.T) {
		r := NewRegistry()
		r.Register(newFakeProvider("stripe"))
		r.Register(newFakeProvider("paypal"))

		p, err := r.Default()
		require.NoError(t, err)
		assert.Equal(t, "stripe", p.Name())
	})

	t.Run("preserves registration order", func(t *testing.T) {
		r := NewRegistry()
		r.Register(newFakeProvider("stripe"))
		r.Register(newFakeProvider("paypal"))
		r.Register(newFakeProvider("paddle"))

		assert.Equal(t, []string{"stripe", "paypal", "paddle"}, r.List())
	})

	t.Run("re-registering keeps position", func(t *testing.T) {
		r := NewRegistry()
		r.Register(newFakeProvider("stripe"))
		r.Register(newFakeProvider("paypal"))

		replacement := newFakeProvider("stripe")
		replacement.version = "v2"
		r.Register(replacement)

		assert.Equal(t, []string{"stripe", "paypal"}, r.List())
		p, err := r.Get("stripe")
		require.NoError(t, err)
		assert.Equal(t, "v2", p.Version())
	})
}

func TestRegistry_Get(t *testing.T) {
	r := NewRegistry()
	r.Register(newFakeProvider("stripe"))

	t.Run("returns registered provider", func(t *testing.T) {
		p, err := r.Get("stripe")
		require.NoError(t, err)
		assert.Equal(t, "stripe", p.Name())
	})

	t.Run("unknown name wraps ErrProviderNotFound", func(t *testing.T) {
		_, err := r.Get("klarna")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrProviderNotFound)
		assert.Contains(t, err.Error(), "klarna")
	})
}

func TestRegistry_Default(t *testing.T) {
	t.Run("empty registry has no default", func(t *testing.T) {
		r := NewRegistry()
		_, err := r.Default()
		assert.ErrorIs(t, err, ErrProviderNotFound)
	})
}

func TestRegistry_SetDefault(t *testing.T) {
	r := NewRegistry()
	r.Register(newFakeProvider("stripe"))
	r.Register(newFakeProvider("paypal"))

	t.Run("overrides first-registered default", func(t *testing.T) {
		require.NoError(t, r.SetDefault("paypal"))

		p, err := r.Default()
		require.NoError(t, err)
		assert.Equal(t, "paypal", p.Name())
	})

	t.Run("unknown name fails", func(t *testing.T) {
		err := r.SetDefault("klarna")
		assert.ErrorIs(t, err, ErrProviderNotFound)
	})
}

func TestRegistry_Refunder(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeRefundProvider{fakeProvider: newFakeProvider("stripe")})
	r.Register(newFakeProvider("paypal"))

	t.Run("returns refund-capable provider", func(t *testing.T) {
		rp, err := r.Refunder("stripe")
		require.NoError(t, err)
		assert.Equal(t, "stripe", rp.Name())
	})

	t.Run("provider without refunds", func(t *testing.T) {
		_, err := r.Refunder("paypal")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "does not support refunds")
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := r.Refunder("klarna")
		assert.ErrorIs(t, err, ErrProviderNotFound)
	})
}
