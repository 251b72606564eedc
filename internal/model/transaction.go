package model

// TransactionFields is the canonical field layout for cleaned price paid
// transaction records, in column order. The CSV parser produces records in
// this shape and the database store persists them in this shape.
var TransactionFields = []Field{
	{Name: "transaction_id", Type: FieldID},
	{Name: "price", Type: FieldMeasure},
	{Name: "date_of_transfer", Type: FieldDate},
	{Name: "postcode", Type: FieldCategory},
	{Name: "property_type", Type: FieldCategory},
	{Name: "property_type_name", Type: FieldCategory},
	{Name: "old_new", Type: FieldCategory},
	{Name: "district", Type: FieldCategory},
	{Name: "county", Type: FieldCategory},
	{Name: "region", Type: FieldCategory},
	{Name: "price_band", Type: FieldCategory},
}

// TransactionSchema returns the schema for cleaned transaction records.
func TransactionSchema() *Schema {
	s, err := NewSchema(TransactionFields...)
	if err != nil {
		// TransactionFields is a fixed table; a failure here is a programming error.
		panic(err)
	}
	return s
}
