package app

// CredentialsRequest is the input for registering and logging in.
type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ExportRequest is the input for the admin export command.
type ExportRequest struct {
	UserID    int
	InvoiceID int
	Format    string
}
