package view

import (
	"bytes"
	"strings"
	"testing"

	"earn_usdc/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPage(t *testing.T) {
	page, err := NewPage()
	require.NoError(t, err)

	st := entity.ZeroAppState()
	st.Wallet = entity.WalletState{Connected: true, Address: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", Kind: entity.WalletKindMetaMask}

	var buf bytes.Buffer
	require.NoError(t, page.Render(&buf, NewPresenter().Render(st)))
	out := buf.String()
	assert.Contains(t, out, "0x8335...2913")
	assert.Contains(t, out, "MetaMask")
	require.NoError(t, ValidatePage(strings.NewReader(out)))
}

func TestValidatePage_MissingElements(t *testing.T) {
	doc := `<html><body><div id="welcomeScreen"></div><button id="deposit"></button></body></html>`

	err := ValidatePage(strings.NewReader(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loadingOverlay")
	assert.Contains(t, err.Error(), "claimRewards")
	assert.NotContains(t, err.Error(), "welcomeScreen")
}
