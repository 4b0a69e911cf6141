package market

import (
	"farmmarket/core/events"
	"farmmarket/native/catalog"
)

// Init mints the marketplace capability and hands it to deployer. It can run
// once per store.
func (e *Engine) Init(deployer [20]byte) (*Cap, error) {
	var created *Cap
	err := e.update("init", func(txn Txn, _ Ledger) ([]events.Event, error) {
		if _, ok, err := txn.CapGet(); err != nil {
			return nil, err
		} else if ok {
			return nil, ErrAlreadyInitialized
		}
		id, err := txn.NextID(kindCap, deployer)
		if err != nil {
			return nil, err
		}
		created = &Cap{ID: id, Owner: deployer, CreatedAt: e.now()}
		if err := txn.CapPut(created); err != nil {
			return nil, err
		}
		return []events.Event{events.MarketInitialized{CapID: id, Deployer: deployer}}, nil
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("marketplace initialised", "capId", hexID(created.ID))
	return created, nil
}

// ListProduct creates a listing owned by farmer. Price and stock are not
// validated.
func (e *Engine) ListProduct(farmer [20]byte, name string, unitPrice, stock uint64) (*catalog.Product, error) {
	var product *catalog.Product
	err := e.update("listProduct", func(txn Txn, _ Ledger) ([]events.Event, error) {
		id, err := txn.NextID(kindProduct, farmer)
		if err != nil {
			return nil, err
		}
		product = catalog.New(id, farmer, name, unitPrice, stock, e.now())
		if err := txn.ProductPut(product); err != nil {
			return nil, err
		}
		return []events.Event{events.ProductListed{
			ProductID: id,
			Name:      product.Name,
			UnitPrice: unitPrice,
			Stock:     stock,
			Farmer:    farmer,
		}}, nil
	})
	if err != nil {
		return nil, err
	}
	return product.Clone(), nil
}

// UpdateStock overwrites the product's stock. Only the product's farmer may
// call it.
func (e *Engine) UpdateStock(productID [32]byte, caller [20]byte, newStock uint64) error {
	return e.update("updateStock", func(txn Txn, _ Ledger) ([]events.Event, error) {
		product, err := loadProduct(txn, productID)
		if err != nil {
			return nil, err
		}
		previous, err := product.SetStock(caller, newStock)
		if err != nil {
			return nil, err
		}
		if err := txn.ProductPut(product); err != nil {
			return nil, err
		}
		return []events.Event{events.StockUpdated{
			ProductID: productID,
			Farmer:    caller,
			OldStock:  previous,
			NewStock:  newStock,
		}}, nil
	})
}

// DeleteProduct removes the listing. Live orders referencing it are left
// untouched.
func (e *Engine) DeleteProduct(productID [32]byte, caller [20]byte) error {
	return e.update("deleteProduct", func(txn Txn, _ Ledger) ([]events.Event, error) {
		product, err := loadProduct(txn, productID)
		if err != nil {
			return nil, err
		}
		if err := product.Authorize(caller); err != nil {
			return nil, err
		}
		if err := txn.ProductDelete(productID); err != nil {
			return nil, err
		}
		return []events.Event{events.ProductDeleted{ProductID: productID, Farmer: caller}}, nil
	})
}

func loadProduct(txn Txn, id [32]byte) (*catalog.Product, error) {
	product, ok, err := txn.ProductGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrProductNotFound
	}
	return product.Clone(), nil
}
