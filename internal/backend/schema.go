package backend

// Schema is the DDL for the storefront tables. The hosted backend has no migration endpoint, so
// operators paste it into the SQL editor (boxctl schema prints it).
const Schema = `CREATE TABLE IF NOT EXISTS products (
    id SERIAL PRIMARY KEY,
    title TEXT NOT NULL,
    price TEXT,
    rating TEXT,
    source TEXT,
    url TEXT,
    category TEXT,
    description TEXT,
    created_at TIMESTAMP DEFAULT NOW(),
    updated_at TIMESTAMP DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS mystery_boxes (
    id SERIAL PRIMARY KEY,
    title TEXT NOT NULL,
    price TEXT NOT NULL,
    rating TEXT,
    description TEXT,
    contents JSONB,
    category TEXT,
    image_url TEXT,
    value TEXT,
    savings TEXT,
    created_at TIMESTAMP DEFAULT NOW(),
    updated_at TIMESTAMP DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS cart_items (
    id SERIAL PRIMARY KEY,
    box_id INTEGER NOT NULL REFERENCES mystery_boxes (id),
    user_id UUID REFERENCES auth.users (id),
    quantity INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMPTZ DEFAULT NOW()
);
`
