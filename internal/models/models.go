package models

// Tables lists every persisted model in migration order.
var Tables = []any{
	&Product{},
	&QuantityHistory{},
	&Recipe{},
	&AuditLog{},
	&User{},
}
