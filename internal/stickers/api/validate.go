// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package api

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"stickerengine/internal/stickers/model"
)

// fieldMessages holds the human message per JSON field name.
var fieldMessages = map[string]string{
	"transactionId": "Transaction ID is required",
	"shopperId":     "Shopper ID is required",
	"storeId":       "Store ID is required",
	"timestamp":     "Timestamp is required",
	"items":         "Items list cannot be empty",
	"sku":           "SKU is required",
	"name":          "Item name is required",
	"quantity":      "Quantity must be at least 1",
	"unitPrice":     "Unit price must be positive",
	"category":      "Category is required",
}

// limitMessages is used instead of fieldMessages when a "max" constraint fails.
var limitMessages = map[string]string{
	"transactionId": "Transaction ID must be at most 64 characters",
	"shopperId":     "Shopper ID must be at most 64 characters",
	"storeId":       "Store ID must be at most 64 characters",
	"items":         "Items list cannot exceed 100 items",
	"sku":           "SKU must be at most 64 characters",
	"name":          "Item name must be at most 255 characters",
	"quantity":      "Quantity must be at most 10000",
	"category":      "Category must be at most 64 characters",
}

// maxAmount is the largest value the DECIMAL(10,2) money columns hold.
var maxAmount = decimal.RequireFromString("99999999.99")

type requestValidator struct {
	v *validator.Validate
}

func newRequestValidator() *requestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})
	return &requestValidator{v: v}
}

// Struct returns one "path: message" line per violation, or nil.
func (rv *requestValidator) Struct(req model.TransactionRequest) []string {
	var msgs []string
	seen := map[string]bool{}
	add := func(path, msg string) {
		if seen[path] {
			return
		}
		seen[path] = true
		msgs = append(msgs, path+": "+msg)
	}

	if err := rv.v.Struct(req); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return []string{err.Error()}
		}
		for _, fe := range verrs {
			add(fieldPath(fe.Namespace()), messageFor(fe.Field(), fe.Tag()))
		}
	}
	if req.Timestamp.IsZero() {
		add("timestamp", fieldMessages["timestamp"])
	}

	// Prices and totals must fit DECIMAL(10,2) exactly.
	for i, it := range req.Items {
		path := "items[" + strconv.Itoa(i) + "].unitPrice"
		switch {
		case !it.UnitPrice.IsPositive():
			// already reported by gt=0
		case !it.UnitPrice.Equal(it.UnitPrice.Round(2)):
			add(path, "Unit price must have at most 2 decimal places")
		case it.UnitPrice.GreaterThan(maxAmount):
			add(path, "Unit price must not exceed "+maxAmount.StringFixed(2))
		}
	}
	if len(msgs) == 0 && req.TotalAmount().GreaterThan(maxAmount) {
		add("items", "Transaction total must not exceed "+maxAmount.StringFixed(2))
	}
	return msgs
}

func messageFor(field, tag string) string {
	if tag == "max" {
		if msg, ok := limitMessages[field]; ok {
			return msg
		}
	}
	if msg, ok := fieldMessages[field]; ok {
		return msg
	}
	return "is invalid"
}

// fieldPath drops the root struct name: "TransactionRequest.items[0].sku" → "items[0].sku".
func fieldPath(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}
