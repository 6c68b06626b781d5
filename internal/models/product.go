package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ProductID identifies a catalog entry. Catalogs carry numeric ids while
// path params and form values arrive as strings, so every id is reduced to
// one canonical string before it is compared.
type ProductID string

// ParseProductID canonicalizes raw: surrounding space is dropped and base-10
// integers lose leading zeros and sign noise ("07", "+7" and "7" are one id).
func ParseProductID(raw string) ProductID {
	s := strings.TrimSpace(raw)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ProductID(strconv.FormatInt(n, 10))
	}
	return ProductID(s)
}

// Equal is the only id comparison used by the selection set and the catalog.
func (id ProductID) Equal(other ProductID) bool {
	return ParseProductID(string(id)) == ParseProductID(string(other))
}

func (id ProductID) String() string { return string(id) }

func (id ProductID) numeric() (int64, bool) {
	n, err := strconv.ParseInt(string(id), 10, 64)
	return n, err == nil
}

func (id ProductID) MarshalJSON() ([]byte, error) {
	if n, ok := id.numeric(); ok {
		return []byte(strconv.FormatInt(n, 10)), nil
	}
	return json.Marshal(string(id))
}

func (id *ProductID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return fmt.Errorf("product id is required")
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ParseProductID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid product id %s: %w", data, err)
	}
	*id = ParseProductID(n.String())
	return nil
}

func (id *ProductID) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("product id must be a scalar, got line %d", value.Line)
	}
	*id = ParseProductID(value.Value)
	return nil
}

// Product is a catalog entry. A selected product is the same projection.
type Product struct {
	ID          ProductID `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Brand       string    `json:"brand" yaml:"brand"`
	Category    string    `json:"category" yaml:"category"`
	Description string    `json:"description,omitempty" yaml:"description"`
	Image       string    `json:"image" yaml:"image"`
}

// Catalog is the shape of the static products resource.
type Catalog struct {
	Products []Product `json:"products" yaml:"products"`
}

// ProductView is a catalog entry as shown in the products region.
type ProductView struct {
	Product
	Selected bool `json:"selected"`
}

type SelectRequest struct {
	ProductID ProductID `json:"product_id"`
}

type SelectionResponse struct {
	Products []Product `json:"products"`
	Count    int       `json:"count"`
}
