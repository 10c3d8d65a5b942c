package analytics

import "fmt"

// schemaInfo describes the queryable tables for the SQL generation prompt.
// It must track db/migrations; columns the model cannot see it cannot query.
const schemaInfo = `DATABASE SCHEMA:

Table: customers
- id (INTEGER, PRIMARY KEY)
- name (TEXT)
- email (TEXT, UNIQUE)
- phone (TEXT)

Table: orders
- id (TEXT, PRIMARY KEY) - Format: ORD001, ORD002
- customer_id (INTEGER, FOREIGN KEY -> customers.id)
- total (NUMERIC)
- status (TEXT) - Values: 'pending', 'shipped', 'delivered', 'cancelled'
- order_date (TIMESTAMPTZ)

Table: products
- id (INTEGER, PRIMARY KEY)
- sku (TEXT, UNIQUE) - Format: SKU001, SKU002
- name (TEXT)
- price (NUMERIC)

Table: order_items
- id (INTEGER, PRIMARY KEY)
- order_id (TEXT, FOREIGN KEY -> orders.id)
- product_id (INTEGER, FOREIGN KEY -> products.id)
- quantity (INTEGER)

Table: returns
- id (TEXT, PRIMARY KEY) - Format: RET1234
- order_id (TEXT, FOREIGN KEY -> orders.id)
- product_sku (TEXT)
- reason (TEXT)
- status (TEXT) - Values: 'pending', 'approved', 'completed'
- created_at (TIMESTAMPTZ)

RELATIONSHIPS:
- customers.id -> orders.customer_id (one-to-many)
- orders.id -> order_items.order_id (one-to-many)
- products.id -> order_items.product_id (one-to-many)
- orders.id -> returns.order_id (one-to-many)`

func buildPrompt(question string) string {
	return fmt.Sprintf(`You are a SQL expert. Generate a READ-ONLY SQL query to answer the question.

%s

RULES:
1. Use ONLY SELECT statements (no INSERT, UPDATE, DELETE, DROP, etc.)
2. Use proper JOINs when accessing multiple tables
3. Use aggregate functions (COUNT, SUM, AVG) when appropriate
4. Limit results to 10 rows unless specifically asked for more
5. Use clear column aliases
6. Return ONLY the SQL query, nothing else

Question: %s

SQL Query:`, schemaInfo, question)
}
