package gateway

// GraphQL documents sent to the commerce API. Every mutation that touches the
// order selects the full aggregate so the caller always receives fresh
// server-computed totals.

const orderFragment = `fragment ActiveOrder on Order {
  id
  code
  state
  active
  currencyCode
  updatedAt
  couponCodes
  customer { id emailAddress firstName lastName }
  lines {
    id
    quantity
    unitPriceWithTax
    linePriceWithTax
    proratedUnitPriceWithTax
    productVariant { id name sku product { name } }
  }
  shippingAddress { fullName company streetLine1 streetLine2 city province postalCode countryCode phoneNumber customFields }
  billingAddress { fullName company streetLine1 streetLine2 city province postalCode countryCode phoneNumber customFields }
  discounts { description amountWithTax adjustmentSource }
  shippingLines { priceWithTax shippingMethod { id name } }
  payments { id state method transactionId amount metadata createdAt }
  subTotal
  subTotalWithTax
  shipping
  shippingWithTax
  total
  totalWithTax
}`

const errorFragment = `... on ErrorResult { errorCode message }`

const activeOrderQuery = orderFragment + `
query ActiveOrder { activeOrder { ...ActiveOrder } }`

const orderByCodeQuery = orderFragment + `
query OrderByCode($code: String!) { orderByCode(code: $code) { ...ActiveOrder } }`

const addItemMutation = orderFragment + `
mutation AddItemToOrder($productVariantId: ID!, $quantity: Int!) {
  addItemToOrder(productVariantId: $productVariantId, quantity: $quantity) {
    ...ActiveOrder
    ` + errorFragment + `
  }
}`

const removeLineMutation = orderFragment + `
mutation RemoveOrderLine($orderLineId: ID!) {
  removeOrderLine(orderLineId: $orderLineId) {
    ...ActiveOrder
    ` + errorFragment + `
  }
}`

const adjustLineMutation = orderFragment + `
mutation AdjustOrderLine($orderLineId: ID!, $quantity: Int!) {
  adjustOrderLine(orderLineId: $orderLineId, quantity: $quantity) {
    ...ActiveOrder
    ` + errorFragment + `
  }
}`

const setCustomerMutation = orderFragment + `
mutation SetCustomerForOrder($input: CreateCustomerInput!) {
  setCustomerForOrder(input: $input) {
    ...ActiveOrder
    ` + errorFragment + `
  }
}`

const setShippingAddressMutation = orderFragment + `
mutation SetOrderShippingAddress($input: CreateAddressInput!) {
  setOrderShippingAddress(input: $input) {
    ...ActiveOrder
    ` + errorFragment + `
  }
}`

const setBillingAddressMutation = orderFragment + `
mutation SetOrderBillingAddress($input: CreateAddressInput!) {
  setOrderBillingAddress(input: $input) {
    ...ActiveOrder
    ` + errorFragment + `
  }
}`

const eligibleShippingMethodsQuery = `
query EligibleShippingMethods {
  eligibleShippingMethods { id name description priceWithTax }
}`

const setShippingMethodMutation = orderFragment + `
mutation SetOrderShippingMethod($shippingMethodId: ID!) {
  setOrderShippingMethod(shippingMethodId: $shippingMethodId) {
    ...ActiveOrder
    ` + errorFragment + `
  }
}`

const eligiblePaymentMethodsQuery = `
query EligiblePaymentMethods {
  eligiblePaymentMethods { code name description isEligible }
}`

const addPaymentMutation = orderFragment + `
mutation AddPaymentToOrder($input: PaymentInput!) {
  addPaymentToOrder(input: $input) {
    ...ActiveOrder
    ` + errorFragment + `
  }
}`

const nextOrderStatesQuery = `
query NextOrderStates { nextOrderStates }`

const transitionOrderMutation = orderFragment + `
mutation TransitionOrderToState($state: String!) {
  transitionOrderToState(state: $state) {
    ...ActiveOrder
    ` + errorFragment + `
  }
}`

const applyCouponMutation = orderFragment + `
mutation ApplyCouponCode($couponCode: String!) {
  applyCouponCode(couponCode: $couponCode) {
    ...ActiveOrder
    ` + errorFragment + `
  }
}`

const removeCouponMutation = orderFragment + `
mutation RemoveCouponCode($couponCode: String!) {
  removeCouponCode(couponCode: $couponCode) {
    ...ActiveOrder
    ` + errorFragment + `
  }
}`

const searchDestinationsQuery = `
query SearchDestinations($query: String!, $limit: Int, $offset: Int) {
  searchDestinations(query: $query, limit: $limit, offset: $offset) {
    items { id subdistrict district city province postalCode }
  }
}`

const availableCountriesQuery = `
query AvailableCountries { availableCountries { code name } }`
