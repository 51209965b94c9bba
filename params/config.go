package params

import (
	"os"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

// Network holds the chain-level constants the signing core depends on.
// Injected explicitly so the order encoder stays portable to test and
// alternate deployments.
type Network struct {
	ChainID            int64
	CTFExchange        common.Address
	NegRiskCTFExchange common.Address
	Collateral         common.Address
	CollateralDecimals int32
}

// Polygon returns the published mainnet deployment.
func Polygon() Network {
	return Network{
		ChainID:            137,
		CTFExchange:        common.HexToAddress("0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E"),
		NegRiskCTFExchange: common.HexToAddress("0xC5d563A36AE78145C45a50134d48A1215220f80a"),
		Collateral:         common.HexToAddress("0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174"),
		CollateralDecimals: 6,
	}
}

// Exchange selects the verifying contract for a market. Negative-risk
// markets settle through a separate exchange deployment, so orders for
// them must be signed against that address.
func (n Network) Exchange(negRisk bool) common.Address {
	if negRisk {
		return n.NegRiskCTFExchange
	}
	return n.CTFExchange
}

type Credentials struct {
	APIKey     string
	Secret     string
	Passphrase string
}

func (c Credentials) Complete() bool {
	return c.APIKey != "" && c.Secret != "" && c.Passphrase != ""
}

type Config struct {
	Network Network

	ClobURL  string
	WSURL    string
	GammaURL string

	HTTPTimeout time.Duration

	// PageLimit is the per-request page size for paginated endpoints;
	// MaxPages caps how far pagination loops will walk.
	PageLimit int
	MaxPages  int

	PrivateKey string
	Creds      Credentials
}

func Default() Config {
	return Config{
		Network:     Polygon(),
		ClobURL:     "https://clob.polymarket.com",
		WSURL:       "wss://ws-subscriptions-clob.polymarket.com/ws/",
		GammaURL:    "https://gamma-api.polymarket.com",
		HTTPTimeout: 30 * time.Second,
		PageLimit:   100,
		MaxPages:    10,
	}
}

// LoadFromEnv loads configuration from a .env file (if it exists) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if v := os.Getenv("CLOB_API_URL"); v != "" {
		cfg.ClobURL = v
	}
	if v := os.Getenv("CLOB_WS_URL"); v != "" {
		cfg.WSURL = v
	}
	if v := os.Getenv("GAMMA_API_URL"); v != "" {
		cfg.GammaURL = v
	}
	if v := os.Getenv("CHAIN_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Network.ChainID = id
		}
	}
	if v := os.Getenv("HTTP_TIMEOUT_SECS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			cfg.HTTPTimeout = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv("PAGE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.PageLimit = n
		}
	}
	if v := os.Getenv("MAX_PAGES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxPages = n
		}
	}

	cfg.PrivateKey = os.Getenv("WALLET_PRIVATE_KEY")
	cfg.Creds = Credentials{
		APIKey:     os.Getenv("CLOB_API_KEY"),
		Secret:     os.Getenv("CLOB_API_SECRET"),
		Passphrase: os.Getenv("CLOB_PASSPHRASE"),
	}

	return cfg
}
