package chain

func init() {
	Register(Mainnet, &Params{
		Network:          Mainnet,
		PubKeyHashAddrID: 0x00, // 1...
		ScriptHashAddrID: 0x05, // 3...
		WIFByte:          0x80,
		Bech32HRP:        "bc",
	})

	Register(Testnet, &Params{
		Network:          Testnet,
		PubKeyHashAddrID: 0x6f, // m or n
		ScriptHashAddrID: 0xc4, // 2...
		WIFByte:          0xef,
		Bech32HRP:        "tb",
	})

	// Regtest shares testnet's version bytes; only the HRP differs.
	Register(Regtest, &Params{
		Network:          Regtest,
		PubKeyHashAddrID: 0x6f,
		ScriptHashAddrID: 0xc4,
		WIFByte:          0xef,
		Bech32HRP:        "bcrt",
	})
}
