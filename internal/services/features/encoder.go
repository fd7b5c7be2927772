package features

import (
    "encoding/json"
    "fmt"
    "sort"

    "SalesPulse/internal/domain/models"
)

// ShopEncoder maps shop names seen at fit time to dense integer codes.
// Codes follow the sorted order of names, so the same set of shops always
// yields the same encoding.
type ShopEncoder struct {
    classes []string
    index   map[string]int
}

// FitShopEncoder builds an encoder over the distinct names.
func FitShopEncoder(names []string) *ShopEncoder {
    set := make(map[string]struct{}, len(names))
    for _, n := range names {
        set[n] = struct{}{}
    }
    classes := make([]string, 0, len(set))
    for n := range set {
        classes = append(classes, n)
    }
    sort.Strings(classes)
    return newShopEncoder(classes)
}

func newShopEncoder(classes []string) *ShopEncoder {
    idx := make(map[string]int, len(classes))
    for i, c := range classes {
        idx[c] = i
    }
    return &ShopEncoder{classes: classes, index: idx}
}

// Encode returns the code of name or an *models.UnknownCategoryError.
func (e *ShopEncoder) Encode(name string) (int, error) {
    code, ok := e.index[name]
    if !ok {
        return 0, &models.UnknownCategoryError{Category: name}
    }
    return code, nil
}

// Decode is the inverse of Encode.
func (e *ShopEncoder) Decode(code int) (string, error) {
    if code < 0 || code >= len(e.classes) {
        return "", fmt.Errorf("shop code %d out of range [0, %d)", code, len(e.classes))
    }
    return e.classes[code], nil
}

// Classes returns the fitted names in code order.
func (e *ShopEncoder) Classes() []string {
    out := make([]string, len(e.classes))
    copy(out, e.classes)
    return out
}

type encoderJSON struct {
    Classes []string `json:"classes"`
}

func (e *ShopEncoder) MarshalJSON() ([]byte, error) {
    return json.Marshal(encoderJSON{Classes: e.classes})
}

func (e *ShopEncoder) UnmarshalJSON(b []byte) error {
    var raw encoderJSON
    if err := json.Unmarshal(b, &raw); err != nil {
        return err
    }
    seen := make(map[string]struct{}, len(raw.Classes))
    for _, c := range raw.Classes {
        if _, dup := seen[c]; dup {
            return fmt.Errorf("encoder: duplicate class %q", c)
        }
        seen[c] = struct{}{}
    }
    *e = *newShopEncoder(raw.Classes)
    return nil
}
