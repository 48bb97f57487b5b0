package catalog

// Default returns the built-in CRM permission catalog.
func Default() *Catalog {
	return MustNew(
		Entry{Key: "contacts.view", Module: "contacts", Label: "View contacts"},
		Entry{Key: "contacts.edit", Module: "contacts", Label: "Edit contacts"},
		Entry{Key: "contacts.delete", Module: "contacts", Label: "Delete contacts", IsCritical: true},
		Entry{Key: "accounts.view", Module: "accounts", Label: "View accounts"},
		Entry{Key: "accounts.edit", Module: "accounts", Label: "Edit accounts"},
		Entry{Key: "deals.view", Module: "deals", Label: "View deals"},
		Entry{Key: "deals.edit", Module: "deals", Label: "Edit deals"},
		Entry{Key: "deals.approve", Module: "deals", Label: "Approve deals", Description: "Approve discounts and close won deals", IsCritical: true},
		Entry{Key: "invoices.view", Module: "invoices", Label: "View invoices"},
		Entry{Key: "invoices.issue", Module: "invoices", Label: "Issue invoices"},
		Entry{Key: "billing.manage", Module: "billing", Label: "Manage billing", Description: "Change payment methods, plans and refunds", IsCritical: true},
		Entry{Key: "reports.view", Module: "reports", Label: "View reports"},
		Entry{Key: "reports.export", Module: "reports", Label: "Export reports"},
		Entry{Key: "projects.view", Module: "projects", Label: "View projects"},
		Entry{Key: "projects.manage", Module: "projects", Label: "Manage projects"},
		Entry{Key: "access.manage", Module: "access", Label: "Manage access", Description: "Edit groups, grants and review elevation requests", IsCritical: true},
		Entry{Key: "audit.view", Module: "access", Label: "View audit trail"},
	)
}
