package store

// Syncable entity names, shared between the descriptor table and the
// store implementations.
const (
	EntityProducts         = "products"
	EntityCustomers        = "customers"
	EntitySuppliers        = "suppliers"
	EntityTransactions     = "transactions"
	EntityTransactionItems = "transaction_items"
	EntityPayments         = "payments"
)
