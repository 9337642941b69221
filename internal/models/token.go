package models

// Token represents the ERC-20 token used for payments
type Token struct {
	// Address is the contract address of the token
	Address string `json:"address"`
	// Symbol is the short symbol of the token (e.g., USDFC)
	Symbol string `json:"symbol"`
	// Decimals is the number of decimals the token uses
	Decimals uint8 `json:"decimals"`
}
