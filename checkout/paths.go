package checkout

// Paths are the store-relative endpoints the protocol touches. Zero values
// take the stock storefront layout; override per store when a deployment
// diverges.
type Paths struct {
	Cart       string `yaml:"cart"`
	CartClear  string `yaml:"cart_clear"`
	CartAdd    string `yaml:"cart_add"`
	Checkout   string `yaml:"checkout"`
	Checkpoint string `yaml:"checkpoint"`
	Queue      string `yaml:"queue"`
	Checkouts  string `yaml:"checkouts"`
}

func (p *Paths) defaults() {
	if p.Cart == "" {
		p.Cart = "/cart"
	}
	if p.CartClear == "" {
		p.CartClear = "/cart/clear.js"
	}
	if p.CartAdd == "" {
		p.CartAdd = "/cart/add.js"
	}
	if p.Checkout == "" {
		p.Checkout = "/checkout"
	}
	if p.Checkpoint == "" {
		p.Checkpoint = "/checkpoint"
	}
	if p.Queue == "" {
		p.Queue = "/throttle/queue"
	}
	if p.Checkouts == "" {
		p.Checkouts = "/checkouts/"
	}
}
