package catalog

// Branch is one physical restaurant location. QRToken is the currently
// issued per-session credential embedded in the table QR codes; rotating it
// invalidates codes printed with the previous token.
type Branch struct {
	ID              string
	RestaurantID    string
	Name            string
	WhatsAppNumber  string
	CashierPhone    string
	QRToken         string
	DefaultLanguage string
}

// MenuItem is one orderable product on a branch menu.
type MenuItem struct {
	ID          string
	BranchID    string
	Name        string
	Category    string
	Price       float64
	Recommended bool
	ImageURL    string
	Active      bool
}
