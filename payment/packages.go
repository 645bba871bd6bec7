package payment

import "errors"

// ErrUnknownPackage is returned for a package id not in the fixed table.
var ErrUnknownPackage = errors.New("unknown point package")

// Package is a purchasable point bundle. Price is in yen, the smallest
// currency unit; 1 point costs 1 yen across the whole table.
type Package struct {
	ID          string `json:"id"`
	Points      int    `json:"points"`
	Price       int    `json:"price"`
	Label       string `json:"label"`
	Description string `json:"description"`
	Popular     bool   `json:"popular"`
}

var packages = []Package{
	{ID: "pkg-500", Points: 500, Price: 500, Label: "お試しパック", Description: "1レース分"},
	{ID: "pkg-1000", Points: 1000, Price: 1000, Label: "スタンダード", Description: "2レース分"},
	{ID: "pkg-3000", Points: 3000, Price: 3000, Label: "バリューパック", Description: "6レース分", Popular: true},
	{ID: "pkg-5000", Points: 5000, Price: 5000, Label: "プレミアム", Description: "10レース分"},
	{ID: "pkg-10000", Points: 10000, Price: 10000, Label: "プロフェッショナル", Description: "20レース分"},
}

// Packages returns the fixed point package table.
func Packages() []Package {
	out := make([]Package, len(packages))
	copy(out, packages)
	return out
}

// PackageByID looks up one package.
func PackageByID(id string) (Package, error) {
	for _, p := range packages {
		if p.ID == id {
			return p, nil
		}
	}
	return Package{}, ErrUnknownPackage
}
