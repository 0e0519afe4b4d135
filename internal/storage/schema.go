// internal/storage/schema.go
package storage

import (
	"context"
	"fmt"
)

// Table and column names match the wire names the existing frontend consumes
// (titulo, stock, cantidad_disponible, cantidad_prestado, estado, ...).
// Optional text attributes default to '' rather than NULL; an empty
// codigo_inventario means "no inventory code" to the grouping logic.

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS libros (
	id                    TEXT PRIMARY KEY,
	titulo                TEXT NOT NULL,
	autor                 TEXT NOT NULL DEFAULT '',
	isbn                  TEXT NOT NULL DEFAULT '',
	editorial             TEXT NOT NULL DEFAULT '',
	anio_publicacion      INT NOT NULL DEFAULT 0,
	categoria             TEXT NOT NULL DEFAULT '',
	subcategoria          TEXT NOT NULL DEFAULT '',
	descripcion           TEXT NOT NULL DEFAULT '',
	estado_disponibilidad TEXT NOT NULL DEFAULT 'Disponible',
	estado_elemento       TEXT NOT NULL DEFAULT 'Buen estado',
	stock                 INT NOT NULL DEFAULT 0,
	cantidad_disponible   INT NOT NULL DEFAULT 0,
	cantidad_prestado     INT NOT NULL DEFAULT 0,
	codigo_inventario     TEXT NOT NULL DEFAULT '',
	creado_en             TIMESTAMPTZ NOT NULL,
	actualizado_en        TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_libros_codigo ON libros (codigo_inventario);

CREATE TABLE IF NOT EXISTS prestamos (
	id               TEXT PRIMARY KEY,
	id_elemento      TEXT NOT NULL,
	id_usuario       TEXT NOT NULL DEFAULT '',
	fecha_prestamo   TIMESTAMPTZ NOT NULL,
	fecha_devolucion TIMESTAMPTZ,
	observaciones    TEXT NOT NULL DEFAULT '',
	estado           TEXT NOT NULL,
	creado_en        TIMESTAMPTZ NOT NULL,
	actualizado_en   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_prestamos_elemento ON prestamos (id_elemento);
CREATE INDEX IF NOT EXISTS idx_prestamos_estado ON prestamos (estado);

CREATE TABLE IF NOT EXISTS waitlist (
	seq            BIGSERIAL PRIMARY KEY,
	id             TEXT NOT NULL UNIQUE,
	id_elemento    TEXT NOT NULL,
	id_usuario     TEXT NOT NULL DEFAULT '',
	contacto       TEXT NOT NULL DEFAULT '',
	estado         TEXT NOT NULL,
	creado_en      TIMESTAMPTZ NOT NULL,
	actualizado_en TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_waitlist_elemento ON waitlist (id_elemento, estado);

CREATE TABLE IF NOT EXISTS favoritos (
	id             TEXT PRIMARY KEY,
	id_usuario     TEXT NOT NULL,
	id_elemento    TEXT NOT NULL,
	creado_en      TIMESTAMPTZ NOT NULL,
	actualizado_en TIMESTAMPTZ NOT NULL,
	UNIQUE (id_usuario, id_elemento)
);

CREATE TABLE IF NOT EXISTS usuarios (
	id             TEXT PRIMARY KEY,
	nombre         TEXT NOT NULL,
	documento      TEXT NOT NULL,
	correo         TEXT NOT NULL DEFAULT '',
	username       TEXT NOT NULL UNIQUE,
	password       TEXT NOT NULL,
	salt           TEXT NOT NULL DEFAULT '',
	role           TEXT NOT NULL DEFAULT 'user',
	creado_en      TIMESTAMPTZ NOT NULL,
	actualizado_en TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS historial (
	id                     TEXT PRIMARY KEY,
	id_elemento_original   TEXT NOT NULL,
	titulo                 TEXT NOT NULL DEFAULT '',
	autor                  TEXT NOT NULL DEFAULT '',
	isbn                   TEXT NOT NULL DEFAULT '',
	codigo_inventario      TEXT NOT NULL DEFAULT '',
	categoria              TEXT NOT NULL DEFAULT '',
	snapshot               TEXT NOT NULL,
	motivo                 TEXT NOT NULL DEFAULT '',
	eliminado_por          TEXT NOT NULL DEFAULT '',
	eliminado_en           TIMESTAMPTZ NOT NULL,
	prestamos_relacionados INT NOT NULL DEFAULT 0,
	favoritos_relacionados INT NOT NULL DEFAULT 0
);
`

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS libros (
	id                    TEXT PRIMARY KEY,
	titulo                TEXT NOT NULL,
	autor                 TEXT NOT NULL DEFAULT '',
	isbn                  TEXT NOT NULL DEFAULT '',
	editorial             TEXT NOT NULL DEFAULT '',
	anio_publicacion      INTEGER NOT NULL DEFAULT 0,
	categoria             TEXT NOT NULL DEFAULT '',
	subcategoria          TEXT NOT NULL DEFAULT '',
	descripcion           TEXT NOT NULL DEFAULT '',
	estado_disponibilidad TEXT NOT NULL DEFAULT 'Disponible',
	estado_elemento       TEXT NOT NULL DEFAULT 'Buen estado',
	stock                 INTEGER NOT NULL DEFAULT 0,
	cantidad_disponible   INTEGER NOT NULL DEFAULT 0,
	cantidad_prestado     INTEGER NOT NULL DEFAULT 0,
	codigo_inventario     TEXT NOT NULL DEFAULT '',
	creado_en             TIMESTAMP NOT NULL,
	actualizado_en        TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_libros_codigo ON libros (codigo_inventario);

CREATE TABLE IF NOT EXISTS prestamos (
	id               TEXT PRIMARY KEY,
	id_elemento      TEXT NOT NULL,
	id_usuario       TEXT NOT NULL DEFAULT '',
	fecha_prestamo   TIMESTAMP NOT NULL,
	fecha_devolucion TIMESTAMP,
	observaciones    TEXT NOT NULL DEFAULT '',
	estado           TEXT NOT NULL,
	creado_en        TIMESTAMP NOT NULL,
	actualizado_en   TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_prestamos_elemento ON prestamos (id_elemento);
CREATE INDEX IF NOT EXISTS idx_prestamos_estado ON prestamos (estado);

CREATE TABLE IF NOT EXISTS waitlist (
	seq            INTEGER PRIMARY KEY AUTOINCREMENT,
	id             TEXT NOT NULL UNIQUE,
	id_elemento    TEXT NOT NULL,
	id_usuario     TEXT NOT NULL DEFAULT '',
	contacto       TEXT NOT NULL DEFAULT '',
	estado         TEXT NOT NULL,
	creado_en      TIMESTAMP NOT NULL,
	actualizado_en TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_waitlist_elemento ON waitlist (id_elemento, estado);

CREATE TABLE IF NOT EXISTS favoritos (
	id             TEXT PRIMARY KEY,
	id_usuario     TEXT NOT NULL,
	id_elemento    TEXT NOT NULL,
	creado_en      TIMESTAMP NOT NULL,
	actualizado_en TIMESTAMP NOT NULL,
	UNIQUE (id_usuario, id_elemento)
);

CREATE TABLE IF NOT EXISTS usuarios (
	id             TEXT PRIMARY KEY,
	nombre         TEXT NOT NULL,
	documento      TEXT NOT NULL,
	correo         TEXT NOT NULL DEFAULT '',
	username       TEXT NOT NULL UNIQUE,
	password       TEXT NOT NULL,
	salt           TEXT NOT NULL DEFAULT '',
	role           TEXT NOT NULL DEFAULT 'user',
	creado_en      TIMESTAMP NOT NULL,
	actualizado_en TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS historial (
	id                     TEXT PRIMARY KEY,
	id_elemento_original   TEXT NOT NULL,
	titulo                 TEXT NOT NULL DEFAULT '',
	autor                  TEXT NOT NULL DEFAULT '',
	isbn                   TEXT NOT NULL DEFAULT '',
	codigo_inventario      TEXT NOT NULL DEFAULT '',
	categoria              TEXT NOT NULL DEFAULT '',
	snapshot               TEXT NOT NULL,
	motivo                 TEXT NOT NULL DEFAULT '',
	eliminado_por          TEXT NOT NULL DEFAULT '',
	eliminado_en           TIMESTAMP NOT NULL,
	prestamos_relacionados INTEGER NOT NULL DEFAULT 0,
	favoritos_relacionados INTEGER NOT NULL DEFAULT 0
);
`

// Migrate creates the schema for the store's dialect. Safe to run on every
// start, as the original backend did.
func (s *Store) Migrate(ctx context.Context) error {
	schema := schemaSQLite
	if s.dialect == DialectPostgres {
		schema = schemaPostgres
	}
	if _, err := s.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}
